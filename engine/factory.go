package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/annex/distance"
)

const defaultPQBits = 8

var (
	rePCA  = regexp.MustCompile(`^PCAR?(\d+)$`)
	reHNSW = regexp.MustCompile(`^HNSW(\d*)$`)
	reIVF  = regexp.MustCompile(`^IVF(\d+)$`)
	rePQ   = regexp.MustCompile(`^PQ(\d+)(?:x(\d+))?$`)
)

// New builds an empty index from a comma-separated description such as
// "Flat", "HNSW32", "IVF100,Flat", "IVF100,PQ8", "PQ16x8", "SQ8" or
// "PCA32,IVF100,PQ8". A leading "IDMap" token wraps the result in an IDMap.
func New(d int, description string, metric distance.Metric) (Index, error) {
	if err := validateShape(d, metric); err != nil {
		return nil, err
	}

	tokens := splitDescription(description)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty description", ErrBadDescription)
	}

	wrapIDs := false
	if tokens[0] == "IDMap" {
		wrapIDs = true
		tokens = tokens[1:]
	}

	dInner := d
	pcaOut := 0
	if len(tokens) > 0 {
		if mm := rePCA.FindStringSubmatch(tokens[0]); mm != nil {
			pcaOut = atoi(mm[1])
			if pcaOut <= 0 || pcaOut > d {
				return nil, fmt.Errorf("%w: %q reduces %d dimensions to %d", ErrBadDescription, tokens[0], d, pcaOut)
			}
			dInner = pcaOut
			tokens = tokens[1:]
		}
	}

	idx, err := newBody(dInner, tokens, metric, description)
	if err != nil {
		return nil, err
	}

	if pcaOut > 0 {
		idx, err = NewPreTransform(d, idx)
		if err != nil {
			return nil, err
		}
	}

	if wrapIDs {
		return NewIDMap(idx), nil
	}

	return idx, nil
}

func newBody(d int, tokens []string, metric distance.Metric, description string) (Index, error) {
	bad := func() error {
		return fmt.Errorf("%w: %q", ErrBadDescription, description)
	}

	switch len(tokens) {
	case 1:
		tok := tokens[0]
		switch {
		case tok == "Flat":
			return NewFlat(d, metric)
		case tok == "SQ8":
			return NewSQ(d, metric)
		case reHNSW.MatchString(tok):
			return NewHNSW(d, hnswM(tok), metric)
		case rePQ.MatchString(tok):
			m, nbits := pqShape(tok)
			return NewPQ(d, m, nbits, metric)
		}
	case 2:
		if mm := reHNSW.FindStringSubmatch(tokens[0]); mm != nil && tokens[1] == "Flat" {
			return NewHNSW(d, hnswM(tokens[0]), metric)
		}
		mm := reIVF.FindStringSubmatch(tokens[0])
		if mm == nil {
			return nil, bad()
		}
		nlist := atoi(mm[1])
		switch {
		case tokens[1] == "Flat":
			return NewIVFFlat(d, nlist, metric)
		case rePQ.MatchString(tokens[1]):
			m, nbits := pqShape(tokens[1])
			return NewIVFPQ(d, nlist, m, nbits, metric)
		}
	}

	return nil, bad()
}

func splitDescription(description string) []string {
	var tokens []string
	for _, t := range strings.Split(description, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

func hnswM(tok string) int {
	mm := reHNSW.FindStringSubmatch(tok)
	if mm[1] == "" {
		return DefaultHNSWM
	}
	return atoi(mm[1])
}

func pqShape(tok string) (int, int) {
	mm := rePQ.FindStringSubmatch(tok)
	nbits := defaultPQBits
	if mm[2] != "" {
		nbits = atoi(mm[2])
	}
	return atoi(mm[1]), nbits
}

// atoi parses a digits-only regexp capture; overflow yields -1.
func atoi(s string) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return v
}
