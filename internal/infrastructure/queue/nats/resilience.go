package nats

import (
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/servicing-triage/internal/infrastructure/resilience"
)

const publishOperation = "nats publish"

// connectionErrors clear up once the client reconnects.
var connectionErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
}

func classifyNATSError(err error) resilience.ErrorClassification {
	if class, ok := resilience.ClassifyCommon(err, false); ok {
		return class
	}
	for _, target := range connectionErrors {
		if errors.Is(err, target) {
			return resilience.Transient
		}
	}
	return resilience.Permanent
}

func temporary(err error) error {
	return resilience.WrapTemporary(publishOperation, err, classifyNATSError)
}
