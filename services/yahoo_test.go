package services

import (
	"testing"
)

func TestNewYahooService(t *testing.T) {
	service := NewYahooService()

	if service == nil {
		t.Fatal("expected service to be created")
	}
}

func TestYahooService_ImplementsInterface(t *testing.T) {
	var _ YahooServiceInterface = &YahooService{}
}
