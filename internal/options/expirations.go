package options

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"earnings/internal/types"
)

var ErrNoExpirations = errors.New("no expirations in option chain")

type targetKind int

const (
	targetDTE targetKind = iota
	targetFront
	targetBack
)

// Target picks one expiration out of a chain.
type Target struct {
	kind targetKind
	dte  int
}

// Front is the nearest expiration.
func Front() Target { return Target{kind: targetFront} }

// Back is the second nearest expiration.
func Back() Target { return Target{kind: targetBack} }

// DTE is the expiration closest to n days out.
func DTE(n int) Target { return Target{kind: targetDTE, dte: n} }

func (t Target) String() string {
	switch t.kind {
	case targetFront:
		return "front"
	case targetBack:
		return "back"
	default:
		return fmt.Sprintf("dte=%d", t.dte)
	}
}

// ParseExpirations lists the expirations of a chain sorted by DTE. Keys have
// the form "2021-09-17:16". Weekly cycles are dropped unless weeklies is set.
func ParseExpirations(raw *types.RawChain, weeklies bool) ([]types.Expiration, error) {
	if raw == nil {
		return nil, ErrNoExpirations
	}

	seen := make(map[string]bool)
	var exps []types.Expiration
	for _, m := range []types.ExpDateMap{raw.CallExpDateMap, raw.PutExpDateMap} {
		for key, strikes := range m {
			if seen[key] {
				continue
			}
			seen[key] = true

			date, dteStr, ok := strings.Cut(key, ":")
			if !ok {
				return nil, fmt.Errorf("malformed expiration key %q", key)
			}
			dte, err := strconv.Atoi(dteStr)
			if err != nil {
				return nil, fmt.Errorf("malformed expiration key %q: %w", key, err)
			}

			exp := types.Expiration{Key: key, Date: date, DTE: dte, Type: expirationType(strikes)}
			if exp.Type == types.Weekly && !weeklies {
				continue
			}
			exps = append(exps, exp)
		}
	}

	if len(exps) == 0 {
		return nil, ErrNoExpirations
	}
	sort.Slice(exps, func(i, j int) bool {
		if exps[i].DTE != exps[j].DTE {
			return exps[i].DTE < exps[j].DTE
		}
		return exps[i].Date < exps[j].Date
	})
	return exps, nil
}

// expirationType reads the cycle type off any contract of the expiration;
// "R" marks the regular monthly cycle.
func expirationType(strikes map[string][]types.RawContract) types.ExpirationType {
	for _, contracts := range strikes {
		for _, c := range contracts {
			if c.ExpirationType == "R" {
				return types.Monthly
			}
			return types.Weekly
		}
	}
	return types.Weekly
}

// SelectExpiration applies target to a DTE-sorted list.
func SelectExpiration(exps []types.Expiration, target Target) (types.Expiration, error) {
	if len(exps) == 0 {
		return types.Expiration{}, ErrNoExpirations
	}

	switch target.kind {
	case targetFront:
		return exps[0], nil
	case targetBack:
		if len(exps) < 2 {
			return types.Expiration{}, fmt.Errorf("%w: no back month, only %s", ErrNoExpirations, exps[0].Date)
		}
		return exps[1], nil
	}

	best := exps[0]
	for _, e := range exps[1:] {
		if abs(e.DTE-target.dte) < abs(best.DTE-target.dte) {
			best = e
		}
	}
	return best, nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
