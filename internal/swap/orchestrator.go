package swap

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jafalter/mw-btc-swap/internal/btcchain"
	"github.com/jafalter/mw-btc-swap/internal/mw"
	"github.com/jafalter/mw-btc-swap/internal/rpcclient"
	"github.com/jafalter/mw-btc-swap/internal/swaperr"
	"github.com/jafalter/mw-btc-swap/internal/swapconfig"
	"github.com/jafalter/mw-btc-swap/internal/wire"
)

// Command is the tagged variant spec §9 calls for in place of a
// virtual-call Command hierarchy: one dispatch switches on it.
type Command int

const (
	CmdInit Command = iota
	CmdImportBTC
	CmdImportGrin
	CmdListen
	CmdAccept
	CmdSetup
	CmdExecute
	CmdCancel
)

// Args bundles every flag any subcommand accepts (spec §6's CLI table).
// Only the fields relevant to the dispatched Command are read; this
// mirrors the table's own shape more directly than seven separate
// dispatch signatures would, while keeping Dispatch itself a single
// function as spec §9 prescribes.
type Args struct {
	// init
	FromCurrency Currency
	ToCurrency   Currency
	FromAmount   uint64
	ToAmount     uint64
	TimeoutMin   uint64

	// shared
	SwapID uuid.UUID

	// import btc
	BTCTxid       string
	BTCVout       uint32
	BTCValue      int64
	BTCPrivKeyWIF string
	BTCPubScript  string

	// import grin
	GrinCommitment    string
	GrinBlindingHex   string
	GrinValueNanogrin uint64
}

// Orchestrator holds the process-wide collaborators every command
// needs: chain clients, the peer transport, and a logger. Built once in
// cmd/mwbtcswapctl and threaded through Dispatch, never a package
// global (spec §9's instruction against a global chain-config toggle).
type Orchestrator struct {
	Settings *swapconfig.Settings
	BTC      *rpcclient.BitcoinClient
	Grin     *rpcclient.GrinClient
	Log      zerolog.Logger

	peer *wire.Conn
}

// New builds an Orchestrator's chain clients from settings.
func New(settings *swapconfig.Settings, log zerolog.Logger) (*Orchestrator, error) {
	btcNet := btcchain.NetParamsFor(settings.Network == swapconfig.Mainnet)
	btcClient, err := rpcclient.NewBitcoinClient(rpcclient.BitcoinConfig{
		Host: fmt.Sprintf("%s:%d", settings.BTC.URL, settings.BTC.Port),
		User: settings.BTC.User,
		Pass: settings.BTC.Pass,
		Net:  btcNet,
	}, log)
	if err != nil {
		return nil, err
	}
	grinClient := rpcclient.NewGrinClient(rpcclient.GrinConfig{
		URL: settings.Grin.URL, Port: settings.Grin.Port,
		User: settings.Grin.User, Pass: settings.Grin.Pass, Id: settings.Grin.Id,
	}, log)
	return &Orchestrator{Settings: settings, BTC: btcClient, Grin: grinClient, Log: log}, nil
}

// Dispatch is the single entry point spec §9 calls for: one switch over
// the tagged Command variant.
func (o *Orchestrator) Dispatch(ctx context.Context, cmd Command, args Args) (*SwapSlate, error) {
	switch cmd {
	case CmdInit:
		return o.doInit(args)
	case CmdImportBTC:
		return o.doImportBTC(args)
	case CmdImportGrin:
		return o.doImportGrin(args)
	case CmdListen:
		return o.doListen(ctx, args)
	case CmdAccept:
		return o.doAccept(ctx, args)
	case CmdSetup:
		return o.doSetup(ctx, args)
	case CmdExecute:
		return o.doExecute(ctx, args)
	case CmdCancel:
		return o.doCancel(args)
	default:
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.Dispatch", fmt.Errorf("unknown command %d", cmd))
	}
}

// doInit creates a fresh swap-id and writes both slate files
// (spec §9 fix (b): real JSON, not the original's placeholder string).
func (o *Orchestrator) doInit(args Args) (*SwapSlate, error) {
	if args.TimeoutMin == 0 || args.TimeoutMin > MaxTimeoutMinutes {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.Init", fmt.Errorf("timeout must be in (0, %d] minutes", MaxTimeoutMinutes))
	}
	if args.FromCurrency == args.ToCurrency {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.Init", fmt.Errorf("from-currency and to-currency must differ"))
	}

	// spec §9 fix (c): each chain's timeout is computed against its own
	// block time, not GRIN_BLOCK_TIME for both.
	timeoutBTC := args.TimeoutMin / BTCBlockTimeMin
	timeoutGrin := args.TimeoutMin / GrinBlockTimeMin

	mwSide, btcSide := SideOffered, SideRequested
	mwAmount, btcAmount := args.FromAmount, args.ToAmount
	if args.FromCurrency == CurrencyBTC {
		mwSide, btcSide = SideRequested, SideOffered
		mwAmount, btcAmount = args.ToAmount, args.FromAmount
	}
	if mwAmount > GrinMaxNanogrin {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.Init", fmt.Errorf("grin amount %d exceeds max supply of %d nanogrin", mwAmount, GrinMaxNanogrin))
	}
	if btcAmount > BTCMaxSats {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.Init", fmt.Errorf("bitcoin amount %d exceeds max supply of %d satoshis", btcAmount, BTCMaxSats))
	}

	slate := &SwapSlate{
		ID: uuid.New(),
		Pub: PubSlate{
			Status: StatusInitialized,
			MW:     MWPub{Amount: mwAmount, Timelock: timeoutGrin, Side: mwSide},
			BTC:    BTCPub{Amount: btcAmount, Timelock: timeoutBTC, Side: btcSide},
			Meta:   Meta{Server: o.Settings.TCPAddr, Port: o.Settings.TCPPort},
		},
	}
	if err := slate.Save(o.Settings.SlateDirectory); err != nil {
		return nil, err
	}
	o.Log.Info().Str("swap_id", slate.ID.String()).Msg("initialized swap")
	return slate, nil
}

// doImportBTC adds a Bitcoin input to the priv slate (spec §6 `import btc`).
func (o *Orchestrator) doImportBTC(args Args) (*SwapSlate, error) {
	s, err := Load(o.Settings.SlateDirectory, args.SwapID)
	if err != nil {
		return nil, err
	}
	if _, _, err := btcchain.ScalarFromWIF(args.BTCPrivKeyWIF); err != nil {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.ImportBTC", err)
	}
	s.Priv.BTC.Inputs = append(s.Priv.BTC.Inputs, BTCInputRecord{
		Txid: args.BTCTxid, Vout: args.BTCVout, Value: args.BTCValue,
		PrivKeyWIF: args.BTCPrivKeyWIF, ScriptPubKey: args.BTCPubScript,
	})
	if err := s.Save(o.Settings.SlateDirectory); err != nil {
		return nil, err
	}
	return s, nil
}

// doImportGrin adds a Mimblewimble input to the priv slate (spec §6
// `import grin`).
func (o *Orchestrator) doImportGrin(args Args) (*SwapSlate, error) {
	s, err := Load(o.Settings.SlateDirectory, args.SwapID)
	if err != nil {
		return nil, err
	}
	coin, err := CoinWire{
		Commitment: args.GrinCommitment,
		Blind:      args.GrinBlindingHex,
		Value:      args.GrinValueNanogrin,
	}.Decode()
	if err != nil {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.ImportGrin", err)
	}
	if !coin.Commitment.VerifyOpening(coin.Value, coin.Blind) {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.ImportGrin", fmt.Errorf("commitment does not open to the given value/blind"))
	}
	s.Priv.MW.Inputs = append(s.Priv.MW.Inputs, EncodeCoin(coin))
	if err := s.Save(o.Settings.SlateDirectory); err != nil {
		return nil, err
	}
	return s, nil
}

// doCancel invalidates the in-memory slate and closes the peer channel
// (spec §5): only possible before any on-chain broadcast.
func (o *Orchestrator) doCancel(args Args) (*SwapSlate, error) {
	s, err := Load(o.Settings.SlateDirectory, args.SwapID)
	if err != nil {
		return nil, err
	}
	if s.Pub.Status != StatusInitialized {
		return nil, swaperr.New(swaperr.KindInvalidInput, "swap.Cancel", fmt.Errorf("swap %s is in %s state; cancel is only possible before setup broadcasts", args.SwapID, s.Pub.Status))
	}
	s.Pub.Status = StatusCancelled
	if o.peer != nil {
		_ = o.peer.Close()
		o.peer = nil
	}
	if err := s.Save(o.Settings.SlateDirectory); err != nil {
		return nil, err
	}
	o.Log.Info().Str("swap_id", s.ID.String()).Msg("cancelled swap")
	return s, nil
}

func coinsFromWire(ws []CoinWire) ([]*mw.Coin, error) {
	coins := make([]*mw.Coin, 0, len(ws))
	for _, w := range ws {
		c, err := w.Decode()
		if err != nil {
			return nil, err
		}
		coins = append(coins, c)
	}
	return coins, nil
}
