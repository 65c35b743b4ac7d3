package pipeline

import (
	"context"
)

// Processor transforms one input. Returning false drops the input.
type Processor[I, O any] func(ctx context.Context, input I) (O, bool)

// Node receives from one inbound channel, applies a Processor and forwards
// every produced value to each of its outbound channels in order.
//
// The node owns its outbound channels and closes them when Run returns, so
// downstream consumers observe the end of input the same way the node did.
type Node[I, O any] struct {
	input   <-chan I
	outputs []chan<- O
	process Processor[I, O]
	discard func(O)
}

// NewNode creates a node. The outputs slice is copied.
func NewNode[I, O any](input <-chan I, outputs []chan<- O, process Processor[I, O]) *Node[I, O] {
	owned := make([]chan<- O, len(outputs))
	copy(owned, outputs)

	return &Node[I, O]{
		input:   input,
		outputs: owned,
		process: process,
		discard: nil,
	}
}

// WithDiscard registers a hook called with a value that no outbound channel
// received. A value taken by at least one consumer belongs to that consumer
// and is never discarded.
func (n *Node[I, O]) WithDiscard(discard func(O)) *Node[I, O] {
	n.discard = discard

	return n
}

// Run processes inputs until the inbound channel is closed or ctx is done.
// A send that cannot complete because ctx is done stops the node with
// ErrChannelClosed; the same policy applies to every stage of the relay.
func (n *Node[I, O]) Run(ctx context.Context) error {
	defer n.closeOutputs()

	for {
		select {
		case <-ctx.Done():
			return nil
		case item, ok := <-n.input:
			if !ok {
				return nil
			}

			output, produced := n.process(ctx, item)
			if !produced {
				continue
			}

			sendErr := n.forward(ctx, output)
			if sendErr != nil {
				return sendErr
			}
		}
	}
}

func (n *Node[I, O]) forward(ctx context.Context, output O) error {
	for index, out := range n.outputs {
		sendErr := Send(ctx, out, output)
		if sendErr != nil {
			if index == 0 && n.discard != nil {
				n.discard(output)
			}

			return sendErr
		}
	}

	return nil
}

func (n *Node[I, O]) closeOutputs() {
	for _, out := range n.outputs {
		close(out)
	}
}
