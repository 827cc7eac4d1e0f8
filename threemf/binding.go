package threemf

import (
	"fmt"
	"strconv"
)

// binding is the property reference of one triangle after the object
// defaults have been applied.
type binding struct {
	pid string
	p   [3]int
	// ok is false when no property index is available, which leaves
	// the triangle untextured and uncolored.
	ok bool
}

// defaults holds the object level pid/pindex.
type defaults struct {
	pid    string
	pindex int
	hasIdx bool
}

func objectDefaults(obj *xmlObject) (defaults, error) {
	d := defaults{pid: obj.PID}
	if obj.PIndex != "" {
		v, err := strconv.Atoi(obj.PIndex)
		if err != nil {
			return d, fmt.Errorf("%w: object %v: pindex %q: %v", ErrMalformedPackage, obj.ID, obj.PIndex, err)
		}
		d.pindex, d.hasIdx = v, true
	}
	return d, nil
}

// resolveBinding applies the defaulting rules: pid and p1 fall back to
// the object's pid and pindex; p2 and p3 are only honored when both are
// given, otherwise p1 is repeated so the property is flat.
func resolveBinding(d defaults, tri *xmlTriangle) (binding, error) {
	b := binding{pid: tri.PID}
	if b.pid == "" {
		b.pid = d.pid
	}

	p1, has1, err := optInt(tri.P1)
	if err != nil {
		return b, err
	}
	if !has1 {
		p1, has1 = d.pindex, d.hasIdx
	}
	if !has1 || b.pid == "" {
		return b, nil
	}

	b.p = [3]int{p1, p1, p1}
	b.ok = true

	p2, has2, err := optInt(tri.P2)
	if err != nil {
		return b, err
	}
	p3, has3, err := optInt(tri.P3)
	if err != nil {
		return b, err
	}
	if has2 && has3 {
		b.p[1], b.p[2] = p2, p3
	}
	return b, nil
}

func optInt(s string) (int, bool, error) {
	if s == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, fmt.Errorf("%w: property index %q: %v", ErrMalformedPackage, s, err)
	}
	return v, true, nil
}
