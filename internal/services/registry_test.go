package services

import (
	"testing"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/teachd/internal/intent"
	"github.com/fyrsmithlabs/teachd/internal/memory"
	"github.com/fyrsmithlabs/teachd/internal/session"
)

func TestRegistryAccessors(t *testing.T) {
	// An empty registry returns nil for every service.
	reg := NewRegistry(Options{})

	if reg.Classifier() != nil {
		t.Error("expected nil classifier")
	}
	if reg.Memory() != nil {
		t.Error("expected nil memory service")
	}
	if reg.Workflow() != nil {
		t.Error("expected nil workflow service")
	}
	if reg.Generation() != nil {
		t.Error("expected nil generation service")
	}
	if reg.Speech() != nil {
		t.Error("expected nil speech client")
	}
	if reg.Notifier() != nil {
		t.Error("expected nil notifier")
	}
	if reg.Sessions() != nil {
		t.Error("expected nil session store")
	}
}

func TestRegistryWithServices(t *testing.T) {
	classifier := intent.NewClassifier()
	mem := memory.NewService(zap.NewNop())
	sessions := session.NewMemoryStore()

	reg := NewRegistry(Options{
		Classifier: classifier,
		Memory:     mem,
		Sessions:   sessions,
	})

	if reg.Classifier() != classifier {
		t.Error("classifier mismatch")
	}
	if reg.Memory() != mem {
		t.Error("memory service mismatch")
	}
	if reg.Sessions() != session.Store(sessions) {
		t.Error("session store mismatch")
	}
}
