package services

import (
	"github.com/fyrsmithlabs/teachd/internal/generation"
	"github.com/fyrsmithlabs/teachd/internal/intent"
	"github.com/fyrsmithlabs/teachd/internal/memory"
	"github.com/fyrsmithlabs/teachd/internal/notify"
	"github.com/fyrsmithlabs/teachd/internal/session"
	"github.com/fyrsmithlabs/teachd/internal/speech"
	"github.com/fyrsmithlabs/teachd/internal/workflow"
)

// Registry provides access to all teachd services.
// Use accessor methods to retrieve individual services.
type Registry interface {
	Classifier() *intent.Classifier
	Memory() *memory.Service
	Workflow() workflow.Service
	Generation() generation.Service
	Speech() speech.Client
	Notifier() notify.Notifier
	Sessions() session.Store
}

// Options configures the registry with service instances.
type Options struct {
	Classifier *intent.Classifier
	Memory     *memory.Service
	Workflow   workflow.Service
	Generation generation.Service
	Speech     speech.Client
	Notifier   notify.Notifier
	Sessions   session.Store
}

// registry is the concrete implementation of Registry.
type registry struct {
	classifier *intent.Classifier
	memory     *memory.Service
	workflow   workflow.Service
	generation generation.Service
	speech     speech.Client
	notifier   notify.Notifier
	sessions   session.Store
}

// NewRegistry creates a new service registry.
func NewRegistry(opts Options) Registry {
	return &registry{
		classifier: opts.Classifier,
		memory:     opts.Memory,
		workflow:   opts.Workflow,
		generation: opts.Generation,
		speech:     opts.Speech,
		notifier:   opts.Notifier,
		sessions:   opts.Sessions,
	}
}

func (r *registry) Classifier() *intent.Classifier { return r.classifier }
func (r *registry) Memory() *memory.Service        { return r.memory }
func (r *registry) Workflow() workflow.Service     { return r.workflow }
func (r *registry) Generation() generation.Service { return r.generation }
func (r *registry) Speech() speech.Client          { return r.speech }
func (r *registry) Notifier() notify.Notifier      { return r.notifier }
func (r *registry) Sessions() session.Store        { return r.sessions }
