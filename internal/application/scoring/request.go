package scoring

import (
	"github.com/turtacn/pkasolver/internal/application/microstate"
	"github.com/turtacn/pkasolver/internal/intelligence/sites"
)

// ProfileRequest is the wire form of a profile request shared by the HTTP
// API and the Kafka worker. Unset fields take the sequencer defaults.
type ProfileRequest struct {
	SMILES     string   `json:"smiles,omitempty"`
	MolBlock   string   `json:"molblock,omitempty"`
	PH         *float64 `json:"ph,omitempty"`
	Mode       string   `json:"mode,omitempty"`
	OpenWindow bool     `json:"open_window,omitempty"`
}

// Options converts the request into sequencer options.
func (r ProfileRequest) Options() (microstate.Options, error) {
	opts := microstate.DefaultOptions()
	if r.PH != nil {
		opts.PH = *r.PH
	}
	mode, err := sites.ParseMode(r.Mode)
	if err != nil {
		return opts, err
	}
	opts.Mode = mode
	opts.EnforceWindow = !r.OpenWindow
	return opts, opts.Validate()
}

// Input builds the service input. The molecule itself is parsed by Predict.
func (r ProfileRequest) Input() (*ProfileInput, error) {
	opts, err := r.Options()
	if err != nil {
		return nil, err
	}
	return &ProfileInput{SMILES: r.SMILES, MolBlock: r.MolBlock, Options: opts}, nil
}

// PairRequest is the wire form of PairInput. A missing site is derived from
// the two structures.
type PairRequest struct {
	Protonated   string `json:"protonated" binding:"required"`
	Deprotonated string `json:"deprotonated" binding:"required"`
	Site         *int   `json:"site,omitempty"`
}

// Input converts the request.
func (r PairRequest) Input() *PairInput {
	in := &PairInput{Protonated: r.Protonated, Deprotonated: r.Deprotonated, Site: -1}
	if r.Site != nil {
		in.Site = *r.Site
	}
	return in
}

//Personal.AI order the ending
