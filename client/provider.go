package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/layer-3/invoicegate/internal/eth"
)

// ProviderEvent names an event emitted by a wallet provider
type ProviderEvent string

const (
	// EventAccountsChanged carries the new account list as []string
	EventAccountsChanged ProviderEvent = "accountsChanged"

	// EventDisconnect is emitted when the provider loses its connection
	EventDisconnect ProviderEvent = "disconnect"
)

// Provider request methods used by the session manager
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodPersonalSign    = "personal_sign"
)

// ListenerID identifies a registered provider listener
type ListenerID uint64

// WalletProvider is the capability surface of an injected wallet (EIP-1193)
type WalletProvider interface {
	Request(ctx context.Context, method string, params ...interface{}) (interface{}, error)
	On(event ProviderEvent, handler func(payload interface{})) ListenerID
	RemoveListener(event ProviderEvent, id ListenerID)
}

// ErrUserRejected is returned when the wallet owner declines a request
var ErrUserRejected = errors.New("user rejected the request")

// ErrNoProvider is returned when wallet authentication is attempted without a provider
var ErrNoProvider = errors.New("no wallet provider available")

// RequestAccounts asks the provider for the connected accounts
func RequestAccounts(ctx context.Context, p WalletProvider) ([]string, error) {
	res, err := p.Request(ctx, MethodRequestAccounts)
	if err != nil {
		return nil, err
	}
	switch accounts := res.(type) {
	case []string:
		return accounts, nil
	case []interface{}:
		out := make([]string, 0, len(accounts))
		for _, a := range accounts {
			s, ok := a.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected account entry %T", a)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unexpected %s result %T", MethodRequestAccounts, res)
	}
}

// PersonalSign asks the provider to sign message with address
func PersonalSign(ctx context.Context, p WalletProvider, message, address string) (string, error) {
	res, err := p.Request(ctx, MethodPersonalSign, message, address)
	if err != nil {
		return "", err
	}
	sig, ok := res.(string)
	if !ok || sig == "" {
		return "", fmt.Errorf("unexpected %s result %T", MethodPersonalSign, res)
	}
	return sig, nil
}

// KeyProvider is a WalletProvider backed by a local key. It serves desktop
// and headless clients and lets tests drive the wallet side of the flow.
type KeyProvider struct {
	mu        sync.Mutex
	signer    *eth.Signer
	listeners map[ProviderEvent]map[ListenerID]func(interface{})
	next      ListenerID
	reject    bool
}

// NewKeyProvider creates a provider signing with signer
func NewKeyProvider(signer *eth.Signer) *KeyProvider {
	return &KeyProvider{
		signer:    signer,
		listeners: make(map[ProviderEvent]map[ListenerID]func(interface{})),
	}
}

// Request implements WalletProvider
func (p *KeyProvider) Request(ctx context.Context, method string, params ...interface{}) (interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.mu.Lock()
	signer, reject := p.signer, p.reject
	p.mu.Unlock()

	switch method {
	case MethodRequestAccounts, "eth_accounts":
		if signer == nil {
			return []string{}, nil
		}
		return []string{strings.ToLower(signer.Address().Hex())}, nil
	case MethodPersonalSign:
		if reject {
			return nil, ErrUserRejected
		}
		if len(params) < 2 {
			return nil, fmt.Errorf("%s expects message and address", method)
		}
		message, _ := params[0].(string)
		address, _ := params[1].(string)
		if signer == nil || !strings.EqualFold(address, signer.Address().Hex()) {
			return nil, fmt.Errorf("account %s is not available", address)
		}
		return signer.SignPersonal(message)
	default:
		return nil, fmt.Errorf("unsupported method %s", method)
	}
}

// On implements WalletProvider
func (p *KeyProvider) On(event ProviderEvent, handler func(payload interface{})) ListenerID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next++
	if p.listeners[event] == nil {
		p.listeners[event] = make(map[ListenerID]func(interface{}))
	}
	p.listeners[event][p.next] = handler
	return p.next
}

// RemoveListener implements WalletProvider
func (p *KeyProvider) RemoveListener(event ProviderEvent, id ListenerID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.listeners[event], id)
}

// SetRejectSignatures makes personal_sign fail as if the user declined
func (p *KeyProvider) SetRejectSignatures(reject bool) {
	p.mu.Lock()
	p.reject = reject
	p.mu.Unlock()
}

// SwitchAccount replaces the active key and emits accountsChanged. A nil
// signer disconnects every account.
func (p *KeyProvider) SwitchAccount(signer *eth.Signer) {
	p.mu.Lock()
	p.signer = signer
	accounts := []string{}
	if signer != nil {
		accounts = append(accounts, strings.ToLower(signer.Address().Hex()))
	}
	handlers := make([]func(interface{}), 0, len(p.listeners[EventAccountsChanged]))
	for _, h := range p.listeners[EventAccountsChanged] {
		handlers = append(handlers, h)
	}
	p.mu.Unlock()

	for _, h := range handlers {
		h(accounts)
	}
}

// ListenerCount returns the number of listeners registered for event
func (p *KeyProvider) ListenerCount(event ProviderEvent) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.listeners[event])
}
