package ops

func getBuiltins() []Info {
	return []Info{
		{Name: "add", Arity: 2, Results: 1, Pure: true},
		{Name: "sub", Arity: 2, Results: 1, Pure: true},
		{Name: "mul", Arity: 2, Results: 1, Pure: true},
		{Name: "div", Arity: 2, Results: 1, Pure: true},
		{Name: "neg", Arity: 1, Results: 1, Pure: true},
		{Name: "matmul", Arity: 2, Results: 1, Pure: true},
		{Name: "transpose", Arity: 1, Results: 1, Pure: true},
		{Name: "sum", Arity: 1, Results: 1, Pure: true},
		{Name: "broadcast_like", Arity: 2, Results: 1, Pure: true},
		{Name: "relu_grad", Arity: 2, Results: 1, Pure: true},
		{Name: "sigmoid_grad", Arity: 2, Results: 1, Pure: true},
		{Name: "split", Arity: 1, Results: -1, Pure: true},
		{Name: "cat", Arity: -1, Results: 1, Pure: true},
		// Impure operations update external state and must survive dead
		// code elimination even when their results are unused.
		{Name: "rand", Arity: 0, Results: 1, Pure: false},
		{Name: "accumulate", Arity: 2, Results: 1, Pure: false},
	}
}
