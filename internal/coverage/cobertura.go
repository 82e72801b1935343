package coverage

import (
	"encoding/xml"
	"errors"
	"fmt"
)

// Summary is the top-level totals of a Cobertura report.
type Summary struct {
	LineRate     float64
	BranchRate   float64
	LinesValid   int
	LinesCovered int
	Packages     int
}

// Percent returns the line rate as a percentage.
func (s *Summary) Percent() float64 {
	return s.LineRate * 100
}

func (s *Summary) String() string {
	return fmt.Sprintf("%.1f%% lines (%d/%d)", s.Percent(), s.LinesCovered, s.LinesValid)
}

type coberturaReport struct {
	XMLName      xml.Name `xml:"coverage"`
	LineRate     float64  `xml:"line-rate,attr"`
	BranchRate   float64  `xml:"branch-rate,attr"`
	LinesValid   int      `xml:"lines-valid,attr"`
	LinesCovered int      `xml:"lines-covered,attr"`
	Packages     []struct {
		Name string `xml:"name,attr"`
	} `xml:"packages>package"`
}

// ParseCobertura reads the totals from a Cobertura XML report.
func ParseCobertura(data []byte) (*Summary, error) {
	var r coberturaReport
	if err := xml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse cobertura report: %w", err)
	}
	if r.LineRate < 0 || r.LineRate > 1 {
		return nil, errors.New("parse cobertura report: line-rate out of range")
	}
	return &Summary{
		LineRate:     r.LineRate,
		BranchRate:   r.BranchRate,
		LinesValid:   r.LinesValid,
		LinesCovered: r.LinesCovered,
		Packages:     len(r.Packages),
	}, nil
}
