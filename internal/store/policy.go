package store

import (
	"context"
	"maps"
	"sync"

	"github.com/dmitrijs2005/ledgerkeeper/internal/cryptox"
	"github.com/dmitrijs2005/ledgerkeeper/internal/logging"
	"github.com/dmitrijs2005/ledgerkeeper/internal/schema"
)

// policy applies the field codec to exactly the sensitive fields of a
// collection. With a nil codec it is a pass-through.
type policy struct {
	codec        *cryptox.Codec
	logger       logging.Logger
	degradedOnce sync.Once // per Store, no process-wide state
}

func (p *policy) degraded(ctx context.Context) bool {
	if p.codec != nil {
		return false
	}
	p.degradedOnce.Do(func() {
		p.logger.Warn(ctx, "no encryption key available, sensitive fields are stored as plaintext")
	})
	return true
}

// seal returns a copy of rec with every present, non-null sensitive field
// replaced by its envelope.
func (p *policy) seal(ctx context.Context, rec Record, c *schema.Collection) (Record, error) {
	out := Record(maps.Clone(rec))
	if len(c.Sensitive) == 0 || p.degraded(ctx) {
		return out, nil
	}
	for _, f := range c.Sensitive {
		v, ok := out[f]
		if !ok || v == nil {
			continue
		}
		env, err := p.codec.Encrypt(v)
		if err != nil {
			return nil, err
		}
		out[f] = env.Map()
	}
	return out, nil
}

// open returns a copy of rec with sensitive envelopes decrypted. A field that
// fails to decrypt is set to nil and reported in failed; the rest of the record
// is still returned.
func (p *policy) open(ctx context.Context, rec Record, c *schema.Collection) (out Record, failed []string) {
	out = Record(maps.Clone(rec))
	if len(c.Sensitive) == 0 || p.degraded(ctx) {
		return out, nil
	}
	for _, f := range c.Sensitive {
		v, ok := out[f]
		if !ok || v == nil {
			continue
		}
		plain, err := p.codec.Decrypt(v)
		if err != nil {
			p.logger.Warn(ctx, "field decryption failed",
				"collection", c.Name, "id", rec.ID(), "field", f, "error", err)
			out[f] = nil
			failed = append(failed, f)
			continue
		}
		out[f] = plain
	}
	return out, failed
}
