package queue_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shashiranjanraj/taskqueue/pkg/queue"
)

type greetJob struct {
	Name string
}

func (j *greetJob) Handle(ctx context.Context) error { return nil }
func (j *greetJob) ToMap() map[string]any            { return map[string]any{"name": j.Name} }

func greetFactory(payload map[string]any) (queue.Job, error) {
	name, _ := payload["name"].(string)
	return &greetJob{Name: name}, nil
}

func TestRegistryRegisterAndCreate(t *testing.T) {
	r := queue.NewRegistry()

	if err := r.Register("greet", greetFactory); err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if !r.IsRegistered("greet") {
		t.Fatal("expected greet to be registered")
	}

	job, err := r.Create("greet", map[string]any{"name": "ada"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if job.(*greetJob).Name != "ada" {
		t.Errorf("got name %q, want ada", job.(*greetJob).Name)
	}
}

func TestRegistryAlreadyRegistered(t *testing.T) {
	r := queue.NewRegistry()
	_ = r.Register("greet", greetFactory)

	err := r.Register("greet", greetFactory)
	if !errors.Is(err, queue.ErrAlreadyRegistered) {
		t.Errorf("got %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegistryUnknownType(t *testing.T) {
	r := queue.NewRegistry()
	_, err := r.Create("missing", nil)
	if !errors.Is(err, queue.ErrUnknownType) {
		t.Errorf("got %v, want ErrUnknownType", err)
	}
}

func TestSerializeDeserializeRoundTrip(t *testing.T) {
	r := queue.NewRegistry()
	_ = r.Register("greet", greetFactory)

	original := &greetJob{Name: "grace"}
	envelope := queue.Serialize("greet", original)

	if envelope["type"] != "greet" {
		t.Errorf("envelope type = %v, want greet", envelope["type"])
	}
	if _, ok := envelope["created_at"]; !ok {
		t.Error("envelope missing created_at")
	}

	job, err := r.Deserialize(envelope)
	if err != nil {
		t.Fatalf("deserialize failed: %v", err)
	}
	if job.(*greetJob).Name != original.Name {
		t.Errorf("round trip name = %q, want %q", job.(*greetJob).Name, original.Name)
	}
}

func TestDeserializeMissingType(t *testing.T) {
	r := queue.NewRegistry()
	_, err := r.Deserialize(map[string]any{"name": "x"})
	if !errors.Is(err, queue.ErrMissingType) {
		t.Errorf("got %v, want ErrMissingType", err)
	}
}
