package ports

// Event is one simulated decay: true energy (MeV), radius (mm), time (years)
// and a weight.
type Event struct {
	Energy float64
	Radius float64
	Time   float64
	Weight float64
}

// EventReader reads an event list from a file
type EventReader interface {
	ReadEvents() ([]Event, error)
}
