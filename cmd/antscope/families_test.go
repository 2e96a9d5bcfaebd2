package main

import (
	"encoding/json"
	"testing"

	"github.com/srg/antscope/internal/testutils"
	"github.com/stretchr/testify/suite"
)

type FamiliesTestSuite struct {
	CommandTestSuite
}

func (s *FamiliesTestSuite) TestTable() {
	out, err := s.ExecuteCommand("families")
	s.Require().NoError(err)

	lines := testutils.NonEmptyLines(out)
	s.Require().Len(lines, 9, "header and one row per family MUST be printed")
	s.Contains(lines[0], "CLASS")
	s.Contains(lines[0], "PERIOD")
	s.Contains(out, "heart rate")
	s.Contains(out, "treadmill,elliptical,rower,climber,nordic_skier,trainer")
	s.Contains(out, "63ms", "asset tracker period MUST be rounded to the millisecond")
}

func (s *FamiliesTestSuite) TestJSON() {
	out, err := s.ExecuteCommand("families", "--format", "json")
	s.Require().NoError(err)

	var families []map[string]any
	s.Require().NoError(json.Unmarshal([]byte(out), &families))
	s.Require().Len(families, 8)

	testutils.NewJSONAsserter(s.T()).AssertValue(families[0], `{
		"class": 11,
		"name": "bicycle power",
		"period": 8182,
		"kinds": ["bicycle_power", "crank_torque_frequency"]
	}`)
}

func (s *FamiliesTestSuite) TestInvalidFormat() {
	_, err := s.ExecuteCommand("families", "--format", "xml")
	s.ErrorIs(err, ErrInvalidFormat)

	_, err = s.ExecuteCommand("families", "extra")
	s.Error(err, "families MUST NOT accept arguments")
}

func TestFamiliesTestSuite(t *testing.T) {
	suite.Run(t, new(FamiliesTestSuite))
}
