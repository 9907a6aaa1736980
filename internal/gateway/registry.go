package gateway

// Registry хранит зарегистрированные шлюзы по имени способа оплаты.
type Registry struct {
	gateways map[string]Gateway
}

// NewRegistry создаёт реестр из переданных шлюзов.
func NewRegistry(gateways ...Gateway) *Registry {
	registry := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		registry.gateways[g.Name()] = g
	}
	return registry
}

// Resolve возвращает шлюз по имени способа оплаты.
func (r *Registry) Resolve(name string) (Gateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, ErrUnknownGateway
	}
	return g, nil
}

// Names возвращает имена зарегистрированных шлюзов.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	return names
}
