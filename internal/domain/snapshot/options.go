package snapshot

import "time"

// Option applies a configuration option to the Parser.
type Option func(*Parser)

// WithSchema overrides the column layout.
func WithSchema(s Schema) Option {
	return func(p *Parser) {
		if len(s.Columns) > 0 && s.MaxRows > 0 {
			p.schema = s
		}
	}
}

// WithLocation sets the zone reported times are expressed in.
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.location = loc
		}
	}
}

// WithStrictNames fails the snapshot when a name lacks the skipper/boat
// separator instead of keeping it whole as the skipper.
func WithStrictNames(strict bool) Option {
	return func(p *Parser) {
		p.strictNames = strict
	}
}
