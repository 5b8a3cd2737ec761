package records

import "fmt"

// Registry maps data-model names to their record services. It is built once
// at startup and passed explicitly to the commands; there is no global
// service lookup.
type Registry struct {
	services map[DataModel]Service
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{services: map[DataModel]Service{}}
}

// Register binds a service to a data-model name, replacing any previous
// binding.
func (r *Registry) Register(model DataModel, svc Service) {
	r.services[model] = svc
}

// Get returns the service for model. Unknown models are a configuration
// error.
func (r *Registry) Get(model DataModel) (Service, error) {
	svc, ok := r.services[model]
	if !ok {
		return nil, fmt.Errorf("the used data_model should be of the list [rdm, marc21, lom], got %q", model)
	}
	return svc, nil
}

// ValidRecordType reports whether typ names a known record type.
func ValidRecordType(typ RecordType) bool {
	return typ == TypeRecord || typ == TypeDraft
}
