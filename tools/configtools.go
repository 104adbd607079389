package tools

import (
	"context"

	"github.com/iov-one/quorum"
	"github.com/iov-one/quorum/config"
)

// NoArgs is taken by tools without arguments.
type NoArgs struct{}

// ConnectionArgs are the arguments of CONNECTION_UPDATE.
type ConnectionArgs struct {
	RPCURL string `json:"rpcUrl" validate:"required,url"`
}

// WalletArgs are the arguments of WALLET_UPDATE.
type WalletArgs struct {
	// PrivateKey is base58 encoded or a JSON array of its bytes.
	PrivateKey string `json:"privateKey" validate:"required"`
}

// ImportMultisigArgs are the arguments of IMPORT_MULTISIG.
type ImportMultisigArgs struct {
	Multisig string `json:"multisig" validate:"required,address"`
}

// ConfigView is the configuration as displayed. It never contains the
// private key.
type ConfigView struct {
	Path           string `json:"path"`
	RPCURL         string `json:"rpcUrl"`
	Wallet         string `json:"wallet,omitempty"`
	ActiveMultisig string `json:"activeMultisig,omitempty"`
}

func (s *Server) configView(c config.Config) *ConfigView {
	r := c.Redacted()
	return &ConfigView{
		Path:           s.store.Path(),
		RPCURL:         r.RPCURL,
		Wallet:         r.PrivateKey,
		ActiveMultisig: r.ActiveMultisig,
	}
}

func configTools() []*Tool {
	return []*Tool{
		{
			Name:        "SHOW_CONFIG",
			Description: "Show the ledger endpoint, the wallet address and the active multisig.",
			newArgs:     func() interface{} { return &NoArgs{} },
			run: func(ctx context.Context, s *Server, _ interface{}) (interface{}, string, error) {
				c, err := s.store.Load()
				if err != nil {
					return nil, "", err
				}
				var hint string
				switch {
				case c.PrivateKey == "":
					hint = "Set a wallet with WALLET_UPDATE."
				case c.ActiveMultisig == "":
					hint = "Create a multisig with CREATE_MULTISIG or set one with IMPORT_MULTISIG."
				}
				return s.configView(c), hint, nil
			},
		},
		{
			Name:        "CONNECTION_UPDATE",
			Description: "Set the RPC endpoint of the ledger node.",
			newArgs:     func() interface{} { return &ConnectionArgs{} },
			run: func(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
				args := a.(*ConnectionArgs)
				c, err := s.store.SetConnection(args.RPCURL)
				if err != nil {
					return nil, "", err
				}
				return s.configView(c), "", nil
			},
		},
		{
			Name:        "WALLET_UPDATE",
			Description: "Set the private key used to sign transactions.",
			newArgs:     func() interface{} { return &WalletArgs{} },
			run: func(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
				args := a.(*WalletArgs)
				c, err := s.store.SetWallet(args.PrivateKey)
				if err != nil {
					return nil, "", err
				}
				return s.configView(c), "Keep a backup of the private key, it cannot be recovered.", nil
			},
		},
		{
			Name:        "IMPORT_MULTISIG",
			Description: "Set an existing multisig as the active one.",
			newArgs:     func() interface{} { return &ImportMultisigArgs{} },
			run: func(ctx context.Context, s *Server, a interface{}) (interface{}, string, error) {
				args := a.(*ImportMultisigArgs)
				addr, err := quorum.ParseAddress(args.Multisig)
				if err != nil {
					return nil, "", err
				}
				c, err := s.store.SetActiveMultisig(addr)
				if err != nil {
					return nil, "", err
				}
				return s.configView(c), "Inspect it with GET_MULTISIG.", nil
			},
		},
		{
			Name:        "RESET_CONFIG",
			Description: "Remove the stored configuration.",
			newArgs:     func() interface{} { return &NoArgs{} },
			run: func(ctx context.Context, s *Server, _ interface{}) (interface{}, string, error) {
				if err := s.store.Reset(); err != nil {
					return nil, "", err
				}
				c, err := s.store.Load()
				if err != nil {
					return nil, "", err
				}
				return s.configView(c), "Set a wallet with WALLET_UPDATE.", nil
			},
		},
	}
}
