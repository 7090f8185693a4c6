package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// LoadConfig loads the configuration and sets default values for development/production
func LoadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("json")
	viper.AddConfigPath(".") // Path to look for the config file in

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create a default one
			return createDefaultConfig()
		}
		return fmt.Errorf("error reading config file: %w", err)
	}

	// Ensure we have sensible defaults in case they are not in the config file
	setDefaults()

	return nil
}

// setDefaults sets default configuration values based on the environment
func setDefaults() {
	// Check the current environment (default is development)
	env := viper.GetString("ENV")
	if env == "" {
		env = "development"
		viper.Set("ENV", env)
	}

	// Set defaults for development and production environments
	if env == "development" {
		viper.SetDefault("rpc_url", "https://rpc.sepolia.org")
		viper.SetDefault("chain_id", 11155111) // Sepolia
		viper.SetDefault("allowed_origin", "http://localhost:5173")
		viper.SetDefault("client_db_path", "./dev_securerent.db")
		viper.SetDefault("etherscan_base_url", "https://sepolia.etherscan.io")
		viper.SetDefault("log_level", "debug")
	} else if env == "production" {
		viper.SetDefault("rpc_url", "https://ethereum-rpc.publicnode.com")
		viper.SetDefault("chain_id", 1)
		viper.SetDefault("allowed_origin", "https://securerent.app")
		viper.SetDefault("client_db_path", "/var/lib/securerent/client.db")
		viper.SetDefault("etherscan_base_url", "https://etherscan.io")
		viper.SetDefault("log_level", "info")
	}

	// Common defaults for both environments
	viper.SetDefault("contract_address", "")
	viper.SetDefault("keystore_dir", "./keystore")
	viper.SetDefault("keystore_passphrase", "")
	viper.SetDefault("log_file", "./securerent.log")
	viper.SetDefault("fiat_currency", "mxn")
	viper.SetDefault("fiat_rate_url", "https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=mxn")
	viper.SetDefault("fiat_refresh_interval", "60s")
	viper.SetDefault("notification_scan_from_block", 0)
	viper.SetDefault("api_port", 9014)
	viper.SetDefault("use_https", false)
	viper.SetDefault("cert_file", "server.crt")
	viper.SetDefault("key_file", "server.key")
	viper.SetDefault("jwt_keys_dir", "./jwtkeys")
	viper.SetDefault("client_api_key", "")
	viper.SetDefault("ipc_socket_path", "/tmp/securerent.sock")
	viper.SetDefault("server_mode", true)
}

// createDefaultConfig creates a new configuration file if it doesn't exist
func createDefaultConfig() error {
	setDefaults()

	// Write the default configuration to a file
	err := viper.SafeWriteConfig()
	if err != nil {
		if os.IsExist(err) {
			// If the config already exists, attempt to overwrite it
			err = viper.WriteConfig()
			if err != nil {
				return fmt.Errorf("error writing config file: %w", err)
			}
		} else {
			return fmt.Errorf("error creating config file: %w", err)
		}
	}

	fmt.Println("Created default configuration file")
	return nil
}
