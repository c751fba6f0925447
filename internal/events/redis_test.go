package events

import (
	"testing"

	"github.com/mni-microservices/project-service/internal/config"
)

func TestRedisStreamBus_GroupFor(t *testing.T) {
	cfg := config.DefaultConfig().Events
	cfg.ConsumerName = "project-service-2"
	bus := NewRedisStreamBus(nil, &cfg)

	tests := []struct {
		topic string
		want  string
	}{
		{cfg.DataTopic, "project-service"},
		{cfg.DomainTopic, "project-service"},
		{cfg.SagaTopic, "project-service-project-service-2"},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			if got := bus.groupFor(tt.topic); got != tt.want {
				t.Errorf("groupFor(%q) = %q, expected %q", tt.topic, got, tt.want)
			}
		})
	}
}

func TestRedisStreamBus_GroupForWithoutSagaTopic(t *testing.T) {
	bus := NewRedisStreamBus(nil, &config.EventsConfig{ConsumerGroup: "g", ConsumerName: "c"})
	if got := bus.groupFor("anything"); got != "g" {
		t.Errorf("groupFor() = %q, expected shared group", got)
	}
}
