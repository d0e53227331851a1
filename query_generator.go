package main

import (
	"go.mongodb.org/mongo-driver/bson"
)

// QueryGenerator provides the filters, sorts and index keys used by the workload
type QueryGenerator struct {
	rangeBound int
}

func NewQueryGenerator(rangeBound int) *QueryGenerator {
	return &QueryGenerator{rangeBound: rangeBound}
}

// ByNumber matches documents whose number equals n
func (g *QueryGenerator) ByNumber(n int) bson.D {
	return bson.D{{Key: fieldNumber, Value: n}}
}

// BelowBound matches documents whose number is less than the range bound
func (g *QueryGenerator) BelowBound() bson.D {
	return bson.D{{Key: fieldNumber, Value: bson.D{{Key: "$lt", Value: g.rangeBound}}}}
}

func (g *QueryGenerator) All() bson.D {
	return bson.D{}
}

func (g *QueryGenerator) NumberDescending() bson.D {
	return bson.D{{Key: fieldNumber, Value: -1}}
}

func (g *QueryGenerator) NumberAscending() bson.D {
	return bson.D{{Key: fieldNumber, Value: 1}}
}
