package api

// Service represents a managed background service.
type Service struct {
	Name   string `json:"name"   yaml:"name"`
	Unit   string `json:"unit"   yaml:"unit"`
	Status string `json:"status" yaml:"status"`
}
