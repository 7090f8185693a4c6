package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/securerent/securerent-client/internal/config"
	"github.com/securerent/securerent-client/internal/ipc"
	"github.com/securerent/securerent-client/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "securerent",
	Short: "SecureRent rental client",
	Long:  `A rental-contract client daemon with both interactive and CLI modes.`,
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(propertiesCmd)
	rootCmd.AddCommand(createPropertyCmd)
	rootCmd.AddCommand(contractsCmd)
	rootCmd.AddCommand(createContractCmd)
	rootCmd.AddCommand(requestRentCmd)
	rootCmd.AddCommand(signContractCmd)
	rootCmd.AddCommand(payRentCmd)
	rootCmd.AddCommand(cancelContractCmd)
	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(markReadCmd)
	rootCmd.AddCommand(priceCmd)
}

func initConfig() {
	godotenv.Load()

	err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	err = viper.ReadInConfig()
	if err != nil {
		log.Printf("Error reading viper config: %s", err.Error())
	}

	baseDir, err := os.Getwd()
	if err != nil {
		log.Fatalf("Error getting current directory: %v", err)
	}

	viper.Set("base_dir", baseDir)

	if err := logger.Init(viper.GetString("log_file")); err != nil {
		log.Printf("Error initializing logger: %s", err.Error())
	}
	logger.SetLevel(viper.GetString("log_level"))
}

func main() {
	initConfig()
	if len(os.Args) > 1 {
		// CLI mode
		if err := rootCmd.Execute(); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	} else {
		// Interactive mode
		interactiveMode()
	}
}

func interactiveMode() {
	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println("\nSecureRent Client")
		fmt.Println("1. Start the client daemon")
		fmt.Println("2. Connect a wallet account")
		fmt.Println("3. Show session")
		fmt.Println("4. List properties")
		fmt.Println("5. Show notifications")
		fmt.Println("6. Exit")
		fmt.Print("\nEnter your choice (1-6): ")
		choice, _ := reader.ReadString('\n')
		choice = strings.TrimSpace(choice)

		switch choice {
		case "1":
			if err := runDaemon(); err != nil {
				log.Printf("Error running client daemon: %s", err)
			}
		case "2":
			if err := printIPCResult("connect", nil); err != nil {
				log.Printf("Error connecting account: %s", err)
			}
		case "3":
			if err := printIPCResult("session", nil); err != nil {
				log.Printf("Error getting session: %s", err)
			}
		case "4":
			if err := printIPCResult("list-properties", nil); err != nil {
				log.Printf("Error listing properties: %s", err)
			}
		case "5":
			if err := printIPCResult("notifications", nil); err != nil {
				log.Printf("Error getting notifications: %s", err)
			}
		case "6":
			fmt.Println("Exiting program. Goodbye!")
			return
		default:
			fmt.Println("Invalid choice. Please try again.")
		}
	}
}

// printIPCResult sends one command to the running daemon and prints the
// JSON result to stdout.
func printIPCResult(command string, args []string) error {
	client, err := ipc.NewClient()
	if err != nil {
		return fmt.Errorf("connecting to client daemon: %w", err)
	}
	defer client.Close()

	result, err := client.SendCommand(command, args)
	if err != nil {
		return err
	}

	return json.NewEncoder(os.Stdout).Encode(result)
}

// ipcCommand builds a cobra command that forwards its args verbatim to the
// daemon over IPC.
func ipcCommand(use, short, command string, args cobra.PositionalArgs) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		Run: func(cmd *cobra.Command, cmdArgs []string) {
			if err := printIPCResult(command, cmdArgs); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
		},
	}
}

var connectCmd = ipcCommand("connect", "Connect a wallet account", "connect", cobra.NoArgs)

var disconnectCmd = ipcCommand("disconnect", "Disconnect the active account", "disconnect", cobra.NoArgs)

var sessionCmd = ipcCommand("session", "Show the current wallet session", "session", cobra.NoArgs)

var propertiesCmd = ipcCommand("properties", "List properties with availability", "list-properties", cobra.NoArgs)

var createPropertyCmd = ipcCommand(
	"create-property [description] [image-url] [location] [price] [currency]",
	"List a new property for rent",
	"create-property", cobra.RangeArgs(1, 5))

var contractsCmd = ipcCommand(
	"contracts [role]",
	"List rent contracts for the active account (role: landlord or tenant)",
	"list-contracts", cobra.MaximumNArgs(1))

var createContractCmd = ipcCommand(
	"create-contract [property-id] [tenant] [monthly-rent-eth] [total-months]",
	"Create a rent contract as landlord",
	"create-contract", cobra.ExactArgs(4))

var requestRentCmd = ipcCommand(
	"request-rent [property-id]",
	"Request to rent a property",
	"request-rent", cobra.ExactArgs(1))

var signContractCmd = ipcCommand(
	"sign-contract [contract-id]",
	"Sign a pending rent contract as tenant",
	"sign-contract", cobra.ExactArgs(1))

var payRentCmd = ipcCommand(
	"pay-rent [contract-id]",
	"Pay one month of rent on an active contract",
	"pay-rent", cobra.ExactArgs(1))

var cancelContractCmd = ipcCommand(
	"cancel-contract [contract-id]",
	"Cancel a rent contract",
	"cancel-contract", cobra.ExactArgs(1))

var notificationsCmd = ipcCommand(
	"notifications",
	"Show the notification feed for the active account",
	"notifications", cobra.NoArgs)

var markReadCmd = ipcCommand(
	"mark-read [notification-id]...",
	"Mark notifications as read",
	"mark-read", cobra.MinimumNArgs(1))

var priceCmd = ipcCommand("price", "Show the cached ETH fiat rate", "price", cobra.NoArgs)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the client daemon",
	Long:  `Run the client daemon: chain reconciler, price cache, IPC and HTTP API servers.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDaemon(); err != nil {
			fmt.Fprintf(os.Stderr, "Error running client daemon: %v\n", err)
			os.Exit(1)
		}
	},
}
