package service

// ValidationError represents a rejected ingestion request. It is returned
// before any process is started.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
