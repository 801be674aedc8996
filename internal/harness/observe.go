package harness

// Exchange summarizes one completed request for observers.
type Exchange struct {
	Method string
	Path   string
	Status int
	// Body is nil when the response body was never read
	Body []byte
}

// Observer receives an Exchange when a response is released.
type Observer func(Exchange)
