// Package worker provides the DuraGraph worker SDK.
//
// A worker registers one or more graphs with the control plane, subscribes
// to their dispatch subjects on the broker, and executes assigned runs one
// at a time. A graph is an ordered sequence of named node functions, each a
// transformation over a shared state mapping passed from node to node.
//
// Example usage:
//
//	g := worker.NewGraph("hello-world").
//	    Node("greet", greet).
//	    Node("farewell", farewell)
//
//	w := worker.New(worker.Options{Name: "hello-world-worker"})
//	w.RegisterGraph(g)
//	w.Run(ctx)
package worker
