package halo

import (
	"fmt"

	"github.com/notargets/meshloop/mesh"
)

// Link copies owned elements of a source dat into halo slots of a target dat.
// Source and Target normally live in two partitions of the same global mesh.
type Link interface {
	Source() mesh.DatHandle
	Target() mesh.DatHandle
	Exchange() error
}

// DatLink is a typed Link. Pick[k] is an owned element of the source and
// Place[k] the halo element of the target that receives it.
type DatLink[T mesh.Number] struct {
	src, dst *mesh.Dat[T]
	Pick     []int
	Place    []int
}

// NewLink validates the pick and place lists against both dats
func NewLink[T mesh.Number](src, dst *mesh.Dat[T], pick, place []int) (*DatLink[T], error) {
	if src == nil || dst == nil {
		return nil, fmt.Errorf("link: nil dat")
	}
	if src.Dim() != dst.Dim() {
		return nil, fmt.Errorf("link %s -> %s: dim %d does not match %d",
			src.Name(), dst.Name(), src.Dim(), dst.Dim())
	}
	if len(pick) != len(place) {
		return nil, fmt.Errorf("link %s -> %s: %d pick indices for %d place indices",
			src.Name(), dst.Name(), len(pick), len(place))
	}
	owned := src.Set().Size()
	for _, idx := range pick {
		if idx < 0 || idx >= owned {
			return nil, fmt.Errorf("link %s -> %s: pick index %d outside owned range [0, %d)",
				src.Name(), dst.Name(), idx, owned)
		}
	}
	lo, hi := dst.Set().Size(), dst.Set().Extent()
	for _, idx := range place {
		if idx < lo || idx >= hi {
			return nil, fmt.Errorf("link %s -> %s: place index %d outside halo range [%d, %d)",
				src.Name(), dst.Name(), idx, lo, hi)
		}
	}
	return &DatLink[T]{src: src, dst: dst, Pick: pick, Place: place}, nil
}

func (l *DatLink[T]) Source() mesh.DatHandle { return l.src }
func (l *DatLink[T]) Target() mesh.DatHandle { return l.dst }

// Exchange gathers the picked elements and scatters them into the halo
func (l *DatLink[T]) Exchange() error {
	if l.src.Released() || l.dst.Released() {
		return fmt.Errorf("link %s -> %s: dat released", l.src.Name(), l.dst.Name())
	}
	dim := l.src.Dim()
	src, dst := l.src.Data(), l.dst.Data()
	for k, p := range l.Pick {
		q := l.Place[k]
		copy(dst[q*dim:(q+1)*dim], src[p*dim:(p+1)*dim])
	}
	return nil
}

// Links creates one DatLink per (source, target) partition pair of the
// connector. dats[p] is the partition p copy of one global dat.
func Links[T mesh.Number](c *Connector, dats []*mesh.Dat[T]) ([]Link, error) {
	if len(dats) != c.NumPartitions {
		return nil, fmt.Errorf("links: %d dats for %d partitions", len(dats), c.NumPartitions)
	}
	var links []Link
	for src := 0; src < c.NumPartitions; src++ {
		for dst := 0; dst < c.NumPartitions; dst++ {
			pick := c.GetPickIndices(src, dst)
			if len(pick) == 0 {
				continue
			}
			l, err := NewLink(dats[src], dats[dst], pick, c.GetPlaceIndices(dst, src))
			if err != nil {
				return nil, err
			}
			links = append(links, l)
		}
	}
	return links, nil
}
