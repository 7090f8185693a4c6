package main

import (
	"context"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/fsnotify/fsnotify"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/securerent/securerent-client/internal/api"
	clientstatedb "github.com/securerent/securerent-client/internal/database"
	"github.com/securerent/securerent-client/internal/ipc"
	"github.com/securerent/securerent-client/internal/logger"
	"github.com/securerent/securerent-client/internal/oracle"
	"github.com/securerent/securerent-client/internal/rental"
	"github.com/securerent/securerent-client/internal/rental/reconciler"
	"github.com/securerent/securerent-client/internal/wallet"
)

// runDaemon starts every long-lived component and blocks on the HTTP API
// server. The IPC server and the price cache run on their own goroutines.
func runDaemon() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The daemon owns the log file; start it fresh each run.
	if err := logger.RotateLog(viper.GetString("log_file")); err != nil {
		return fmt.Errorf("rotating log file: %w", err)
	}
	defer logger.Cleanup()

	if err := clientstatedb.InitSQLiteDB(viper.GetString("client_db_path")); err != nil {
		return fmt.Errorf("initializing client state database: %w", err)
	}

	ethClient, err := ethclient.Dial(viper.GetString("rpc_url"))
	if err != nil {
		return fmt.Errorf("dialing RPC endpoint: %w", err)
	}
	defer ethClient.Close()

	contractAddr := common.HexToAddress(viper.GetString("contract_address"))
	passphrase := viper.GetString("keystore_passphrase")

	provider := wallet.NewKeystoreProvider(viper.GetString("keystore_dir"))
	defer provider.Close()

	// chain_id is read at bind time so a rebind after a network switch picks
	// up the new id.
	binder := func(account common.Address, withSigner bool) (rental.Contract, error) {
		var signer rental.TransactOptsFactory
		if withSigner {
			chainID := big.NewInt(viper.GetInt64("chain_id"))
			signer = provider.TransactOpts(account, passphrase, chainID)
		}
		return rental.NewBinding(ethClient, contractAddr, signer)
	}

	watchNetworkConfig(provider)

	session := wallet.NewManager(provider, binder)
	session.Restore(ctx)

	// Read path shares one unsigned contract handle.
	readBinding, err := rental.NewBinding(ethClient, contractAddr, nil)
	if err != nil {
		return fmt.Errorf("binding rental contract: %w", err)
	}
	rec := reconciler.New(readBinding, viper.GetUint64("notification_scan_from_block"))

	interval, err := time.ParseDuration(viper.GetString("fiat_refresh_interval"))
	if err != nil {
		interval = time.Minute
	}
	priceCache := oracle.NewCache(viper.GetString("fiat_rate_url"), viper.GetString("fiat_currency"), interval)
	priceCache.Start(ctx)
	defer priceCache.Stop()

	ipcServer, err := ipc.NewServer()
	if err != nil {
		return fmt.Errorf("starting IPC server: %w", err)
	}
	defer ipcServer.Close()

	go handleIPCCommands(ctx, ipcServer, session, rec, priceCache)

	logger.Info("Client daemon started")

	apiServer := api.NewAPI(session, rec, priceCache, viper.GetBool("server_mode"))
	return apiServer.StartServer()
}

// watchNetworkConfig reloads the config file on change and pushes a
// chain-changed event when chain_id moves, invalidating bound handles.
// A changed rpc_url still requires a restart, the dialed client is fixed.
func watchNetworkConfig(provider *wallet.KeystoreProvider) {
	lastChainID := viper.GetInt64("chain_id")
	lastRPC := viper.GetString("rpc_url")

	viper.OnConfigChange(func(fsnotify.Event) {
		if rpc := viper.GetString("rpc_url"); rpc != lastRPC {
			lastRPC = rpc
			logger.Info("rpc_url changed, restart required to use", rpc)
		}
		if id := viper.GetInt64("chain_id"); id != lastChainID {
			lastChainID = id
			logger.Info("chain_id changed to", id)
			provider.NotifyChainChanged()
		}
	})
	viper.WatchConfig()
}

// handleIPCCommands dispatches commands from CLI clients to the session,
// reconciler and price cache.
func handleIPCCommands(ctx context.Context, server *ipc.Server, session *wallet.Manager,
	rec *reconciler.Reconciler, priceCache *oracle.Cache) {

	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-server.Commands():
			if !ok {
				return
			}

			result, err := dispatchCommand(ctx, cmd, server, session, rec, priceCache)

			response := ipc.Response{ID: cmd.ID, Result: result}
			if err != nil {
				response.Error = err.Error()
			}
			server.SendResponse(cmd.ID, response)
		}
	}
}

func dispatchCommand(ctx context.Context, cmd ipc.Command, server *ipc.Server,
	session *wallet.Manager, rec *reconciler.Reconciler, priceCache *oracle.Cache) (interface{}, error) {

	switch cmd.Command {
	case "connect":
		account, err := session.Connect(ctx)
		if err != nil {
			return nil, err
		}
		broadcastSession(server, session)
		return map[string]string{"account": account.Hex()}, nil

	case "disconnect":
		session.Disconnect()
		broadcastSession(server, session)
		return map[string]string{"status": "disconnected"}, nil

	case "session":
		s := session.Session()
		update := ipc.SessionUpdate{HasSigner: s.HasSigner, Ready: s.Ready}
		if s.Account != nil {
			update.Account = s.Account.Hex()
		}
		return update, nil

	case "list-properties":
		var viewer common.Address
		if account, ok := session.Account(); ok {
			viewer = account
		}
		return rec.ListProperties(ctx, viewer)

	case "create-property":
		return runCreateProperty(ctx, session, cmd.Args)

	case "list-contracts":
		account, ok := session.Account()
		if !ok {
			return nil, wallet.ErrSessionNotReady
		}
		role := reconciler.RoleTenant
		if len(cmd.Args) > 0 {
			role = reconciler.Role(cmd.Args[0])
		}
		return rec.ListContractsForRole(ctx, account, role)

	case "create-contract":
		return runCreateContract(ctx, session, cmd.Args)

	case "request-rent":
		return runContractAction(ctx, session, cmd.Args, func(c rental.Contract, id uint64) (common.Hash, error) {
			return c.RequestRent(ctx, id)
		})

	case "sign-contract":
		return runContractAction(ctx, session, cmd.Args, func(c rental.Contract, id uint64) (common.Hash, error) {
			return c.SignRentContract(ctx, id)
		})

	case "pay-rent":
		return runContractAction(ctx, session, cmd.Args, func(c rental.Contract, id uint64) (common.Hash, error) {
			record, err := c.GetRentContract(ctx, id)
			if err != nil {
				return common.Hash{}, err
			}
			return c.PayMonthlyRent(ctx, id, record.MonthlyRent)
		})

	case "cancel-contract":
		return runContractAction(ctx, session, cmd.Args, func(c rental.Contract, id uint64) (common.Hash, error) {
			return c.CancelContract(ctx, id)
		})

	case "notifications":
		account, ok := session.Account()
		if !ok {
			return nil, wallet.ErrSessionNotReady
		}
		return rec.DeriveNotifications(ctx, account)

	case "mark-read":
		account, ok := session.Account()
		if !ok {
			return nil, wallet.ErrSessionNotReady
		}
		if err := rec.MarkRead(account, cmd.Args); err != nil {
			return nil, err
		}
		return map[string]string{"status": "ok"}, nil

	case "price":
		rate, ok := priceCache.Rate()
		if !ok {
			return nil, fmt.Errorf("no fiat rate fetched yet")
		}
		return rate, nil

	default:
		return nil, fmt.Errorf("unknown command: %s", cmd.Command)
	}
}

func runCreateProperty(ctx context.Context, session *wallet.Manager, args []string) (interface{}, error) {
	if len(args) == 0 || args[0] == "" {
		return nil, fmt.Errorf("description is required")
	}

	desc := rental.Description{Text: args[0]}
	if len(args) > 1 {
		desc.ImageURL = args[1]
	}
	if len(args) > 2 {
		desc.Location = args[2]
	}
	if len(args) > 3 && args[3] != "" {
		value, err := decimal.NewFromString(args[3])
		if err != nil {
			return nil, fmt.Errorf("invalid price: %w", err)
		}
		currency := rental.CurrencyETH
		if len(args) > 4 && args[4] != "" {
			currency = rental.Currency(args[4])
		}
		desc.Price = &rental.PriceTag{Value: value, Currency: currency}
	}

	contract, err := session.Contract()
	if err != nil {
		return nil, err
	}
	txHash, err := contract.CreateProperty(ctx, rental.EncodeDescription(desc))
	if err != nil {
		return nil, err
	}
	return map[string]string{"txHash": txHash.Hex(), "link": api.ExplorerTxURL(txHash)}, nil
}

func runCreateContract(ctx context.Context, session *wallet.Manager, args []string) (interface{}, error) {
	if len(args) != 4 {
		return nil, fmt.Errorf("expected property-id, tenant, monthly-rent-eth and total-months")
	}

	propertyID, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid property id: %w", err)
	}
	if !common.IsHexAddress(args[1]) {
		return nil, fmt.Errorf("invalid tenant address: %s", args[1])
	}
	rentEth, err := decimal.NewFromString(args[2])
	if err != nil {
		return nil, fmt.Errorf("invalid monthly rent: %w", err)
	}
	totalMonths, err := strconv.ParseUint(args[3], 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid total months: %w", err)
	}

	contract, err := session.Contract()
	if err != nil {
		return nil, err
	}
	txHash, err := contract.CreateRentContract(ctx, propertyID,
		common.HexToAddress(args[1]), oracle.EthToWei(rentEth), uint32(totalMonths))
	if err != nil {
		return nil, err
	}
	return map[string]string{"txHash": txHash.Hex(), "link": api.ExplorerTxURL(txHash)}, nil
}

func runContractAction(ctx context.Context, session *wallet.Manager, args []string,
	fn func(rental.Contract, uint64) (common.Hash, error)) (interface{}, error) {

	if len(args) != 1 {
		return nil, fmt.Errorf("expected exactly one id argument")
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil || id == 0 {
		return nil, fmt.Errorf("invalid id: %s", args[0])
	}

	contract, err := session.Contract()
	if err != nil {
		return nil, err
	}
	txHash, err := fn(contract, id)
	if err != nil {
		return nil, err
	}
	return map[string]string{"txHash": txHash.Hex(), "link": api.ExplorerTxURL(txHash)}, nil
}

func broadcastSession(server *ipc.Server, session *wallet.Manager) {
	s := session.Session()
	update := ipc.SessionUpdate{HasSigner: s.HasSigner, Ready: s.Ready}
	if s.Account != nil {
		update.Account = s.Account.Hex()
	}
	server.BroadcastSession(update)
}
