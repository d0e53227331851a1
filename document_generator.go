package main

import (
	"strings"

	"go.mongodb.org/mongo-driver/bson"
)

const (
	fieldNumber  = "number"
	fieldPayload = "payload"
)

// DocumentGenerator builds the workload's documents. The payload string is
// built once and shared by every large document.
type DocumentGenerator struct {
	payload string
}

func NewDocumentGenerator(payloadSize int) *DocumentGenerator {
	return &DocumentGenerator{
		payload: strings.Repeat("x", payloadSize),
	}
}

func (g *DocumentGenerator) GenerateSmall(number int) bson.D {
	return bson.D{{Key: fieldNumber, Value: number}}
}

func (g *DocumentGenerator) GenerateLarge(number int) bson.D {
	return bson.D{
		{Key: fieldNumber, Value: number},
		{Key: fieldPayload, Value: g.payload},
	}
}

func (g *DocumentGenerator) Payload() string {
	return g.payload
}
