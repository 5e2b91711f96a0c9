package testsnapshots

// Option applies a configuration option to the Generator.
type Option func(*Generator)

// WithRetired marks boats as retired (rank RET).
func WithRetired(codes ...string) Option {
	return func(g *Generator) {
		for _, c := range codes {
			g.retired[c] = true
		}
	}
}

// WithMalformedPosition writes an unreadable latitude for boats.
func WithMalformedPosition(codes ...string) Option {
	return func(g *Generator) {
		for _, c := range codes {
			g.malformed[c] = true
		}
	}
}

// WithoutReportTime leaves the report time unreadable for boats.
func WithoutReportTime(codes ...string) Option {
	return func(g *Generator) {
		for _, c := range codes {
			g.untimed[c] = true
		}
	}
}
