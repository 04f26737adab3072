package channel

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

var (
	ErrUnsupportedChannel = errors.New("unsupported channel type")
	ErrChannelRegistered  = errors.New("channel type already registered")
)

// registration caches what an adapter can do so lookups do not repeat
// interface assertions.
type registration struct {
	adapter    Adapter
	descriptor Descriptor
	sender     Sender
	editor     MessageEditor
	normalizer ConfigNormalizer
	policy     OutboundPolicyProvider
}

func newRegistration(adapter Adapter) registration {
	reg := registration{adapter: adapter, descriptor: adapter.Descriptor()}
	reg.sender, _ = adapter.(Sender)
	reg.editor, _ = adapter.(MessageEditor)
	reg.normalizer, _ = adapter.(ConfigNormalizer)
	reg.policy, _ = adapter.(OutboundPolicyProvider)
	return reg
}

// Registry maps channel types to adapters. Types are matched case-insensitively.
type Registry struct {
	mu      sync.RWMutex
	entries map[ChannelType]registration
}

func NewRegistry() *Registry {
	return &Registry{entries: map[ChannelType]registration{}}
}

func (r *Registry) Register(adapter Adapter) error {
	if adapter == nil {
		return errors.New("adapter is nil")
	}
	ct := normalizeChannelType(adapter.Type().String())
	if ct == "" {
		return errors.New("channel type is required")
	}
	reg := newRegistration(adapter)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[ct]; exists {
		return fmt.Errorf("%w: %s", ErrChannelRegistered, ct)
	}
	r.entries[ct] = reg
	return nil
}

// MustRegister is Register for static wiring; it panics on error.
func (r *Registry) MustRegister(adapter Adapter) {
	if err := r.Register(adapter); err != nil {
		panic(err)
	}
}

func (r *Registry) lookup(channelType ChannelType) (registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[normalizeChannelType(channelType.String())]
	return reg, ok
}

func (r *Registry) Get(channelType ChannelType) (Adapter, bool) {
	reg, ok := r.lookup(channelType)
	return reg.adapter, ok
}

// Types returns the registered channel types in sorted order.
func (r *Registry) Types() []ChannelType {
	r.mu.RLock()
	types := make([]ChannelType, 0, len(r.entries))
	for ct := range r.entries {
		types = append(types, ct)
	}
	r.mu.RUnlock()
	slices.Sort(types)
	return types
}

func (r *Registry) GetDescriptor(channelType ChannelType) (Descriptor, bool) {
	reg, ok := r.lookup(channelType)
	return reg.descriptor, ok
}

// ListDescriptors returns every descriptor ordered by channel type.
func (r *Registry) ListDescriptors() []Descriptor {
	types := r.Types()
	out := make([]Descriptor, 0, len(types))
	for _, ct := range types {
		if desc, ok := r.GetDescriptor(ct); ok {
			out = append(out, desc)
		}
	}
	return out
}

// ParseChannelType maps user input such as a URL segment to a registered type.
func (r *Registry) ParseChannelType(raw string) (ChannelType, error) {
	ct := normalizeChannelType(raw)
	if _, ok := r.lookup(ct); ct == "" || !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedChannel, raw)
	}
	return ct, nil
}

func (r *Registry) GetSender(channelType ChannelType) (Sender, bool) {
	reg, ok := r.lookup(channelType)
	return reg.sender, ok && reg.sender != nil
}

func (r *Registry) GetMessageEditor(channelType ChannelType) (MessageEditor, bool) {
	reg, ok := r.lookup(channelType)
	return reg.editor, ok && reg.editor != nil
}

// NormalizeConfig runs raw credentials through the adapter's normalizer.
// Adapters without one get raw back unchanged.
func (r *Registry) NormalizeConfig(channelType ChannelType, raw map[string]any) (map[string]any, error) {
	reg, ok := r.lookup(channelType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedChannel, channelType)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if reg.normalizer == nil {
		return raw, nil
	}
	return reg.normalizer.NormalizeConfig(raw)
}

// Send checks msg against the channel's capabilities, splits it by the
// adapter's outbound policy and hands each piece to the adapter in order.
// Delivery stops at the first failing piece.
func (r *Registry) Send(ctx context.Context, cfg ChannelConfig, msg OutboundMessage) error {
	reg, ok := r.lookup(cfg.ChannelType)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedChannel, cfg.ChannelType)
	}
	if reg.sender == nil {
		return fmt.Errorf("channel type %s cannot send messages", cfg.ChannelType)
	}
	if msg.Message.IsEmpty() {
		return errors.New("message is empty")
	}
	if err := ValidateCapabilities(reg.descriptor.Capabilities, msg.Message); err != nil {
		return err
	}
	var policy OutboundPolicy
	if reg.policy != nil {
		policy = reg.policy.OutboundPolicy()
	}
	pieces, err := BuildOutboundMessages(msg, policy)
	if err != nil {
		return err
	}
	for i, piece := range pieces {
		if err := reg.sender.Send(ctx, cfg, piece); err != nil {
			if len(pieces) > 1 {
				return fmt.Errorf("send part %d of %d: %w", i+1, len(pieces), err)
			}
			return err
		}
	}
	return nil
}

func normalizeChannelType(raw string) ChannelType {
	return ChannelType(strings.ToLower(strings.TrimSpace(raw)))
}
