package slicer

// Order represents the order in which layers are handed to a
// LayerProcessor.
type Order byte

const (
	// MinToMax processes the bottom layer first.
	MinToMax Order = iota
	// MaxToMin processes the top layer first.
	MaxToMin
)

// LayerProcessor consumes sliced layers, e.g. to write them to a file.
type LayerProcessor interface {
	ProcessLayer(layer *Layer) error
}

// LayerProcessorFunc adapts a function to a LayerProcessor.
type LayerProcessorFunc func(layer *Layer) error

// ProcessLayer calls f(layer).
func (f LayerProcessorFunc) ProcessLayer(layer *Layer) error {
	return f(layer)
}

// Process hands every layer to lp in the given order and stops at the
// first error.
func Process(layers []*Layer, lp LayerProcessor, order Order) error {
	for i := range layers {
		l := layers[i]
		if order == MaxToMin {
			l = layers[len(layers)-1-i]
		}
		if err := lp.ProcessLayer(l); err != nil {
			return err
		}
	}
	return nil
}
