package persistence

import (
	"time"
)

func createEvent(
	eventType PersistenceEventType,
	operation string,
	collectionName string,
	input any,
	output any,
	query any,
	err error,
	startTime time.Time,
) PersistenceEvent {
	var duration *int64
	if !startTime.IsZero() {
		d := time.Since(startTime).Milliseconds()
		duration = &d
	}

	var collection *string
	if collectionName != "" {
		collection = &collectionName
	}

	var errStr *string
	if err != nil {
		s := err.Error()
		errStr = &s
	}

	return PersistenceEvent{
		Type:       eventType,
		Timestamp:  time.Now().UnixMilli(),
		Operation:  operation,
		Collection: collection,
		Input:      input,
		Output:     output,
		Error:      errStr,
		Query:      query,
		Duration:   duration,
	}
}

// withEventEmission wraps an operation with start, success and failure events.
func withEventEmission[T any](
	hub *eventHub,
	operation string,
	collection string,
	start, success, failed PersistenceEventType,
	input any,
	queryParam func() any,
	fn func() (T, error),
) (T, error) {
	startTime := time.Now()
	hub.emit(createEvent(start, operation, collection, input, nil, nil, nil, startTime))

	result, err := fn()
	if err != nil {
		hub.emit(createEvent(failed, operation, collection, input, nil, queryParam(), err, startTime))
		return result, err
	}

	hub.emit(createEvent(success, operation, collection, input, result, queryParam(), nil, startTime))
	return result, nil
}
