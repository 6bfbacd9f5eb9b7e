package pka_gnn

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/turtacn/pkasolver/internal/domain/molecule"
	"github.com/turtacn/pkasolver/pkg/errors"
)

// Record is one line of a pair dataset. Site is derived from the two
// structures when omitted.
type Record struct {
	Protonated   string  `json:"protonated"`
	Deprotonated string  `json:"deprotonated"`
	PKa          float64 `json:"pka"`
	Site         *int    `json:"site,omitempty"`
	ID           string  `json:"id,omitempty"`
}

// ReadRecords parses JSON lines. Blank lines and lines starting with '#'
// are skipped.
func ReadRecords(r io.Reader) ([]Record, error) {
	var out []Record
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, errors.Wrapf(err, errors.ErrCodeAIDatasetInvalid, "line %d", line)
		}
		if rec.Protonated == "" || rec.Deprotonated == "" {
			return nil, errors.NewValidationError(errors.ErrCodeAIDatasetInvalid,
				fmt.Sprintf("line %d: protonated and deprotonated are required", line))
		}
		if math.IsNaN(rec.PKa) || math.IsInf(rec.PKa, 0) {
			return nil, errors.NewValidationError(errors.ErrCodeAIDatasetInvalid, fmt.Sprintf("line %d: pka must be finite", line))
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAIDatasetInvalid, "read dataset")
	}
	return out, nil
}

// Samples featurizes records. Records that fail to parse or featurize are
// reported by index in the returned skip list rather than aborting the set.
func (f *Featurizer) Samples(records []Record) ([]Sample, []SkippedRecord) {
	var out []Sample
	var skipped []SkippedRecord
	for i, rec := range records {
		site := -1
		if rec.Site != nil {
			site = *rec.Site
		}
		pair, err := molecule.PairFromSMILES(rec.Protonated, rec.Deprotonated, site)
		if err == nil {
			var s Sample
			if s, err = f.Sample(pair, rec.PKa); err == nil {
				out = append(out, s)
				continue
			}
		}
		skipped = append(skipped, SkippedRecord{Index: i, ID: rec.ID, Err: err})
	}
	return out, skipped
}

// SkippedRecord explains why a record was left out.
type SkippedRecord struct {
	Index int
	ID    string
	Err   error
}

//Personal.AI order the ending
