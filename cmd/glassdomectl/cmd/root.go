package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile    string
	verbose    bool
	output     string
	serverAddr string
)

// rootCmd is glassdomectl's base command.
var rootCmd = &cobra.Command{
	Use:   "glassdomectl",
	Short: "Glassdome control plane CLI",
	Long: color.CyanString(`
╔═╗╦  ╔═╗╔═╗╔═╗╔╦╗╔═╗╔╦╗╔═╗
║ ╦║  ╠═╣╚═╗╚═╗ ║║║ ║║║║║╣
╚═╝╩═╝╩ ╩╚═╝╚═╝═╩╝╚═╝╩ ╩╚═╝`) + `

glassdomectl talks to a running Overseer's admin API to inspect status,
VMs, hosts and requests, and to submit deploy/destroy requests.`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.glassdomectl.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "output format (text|json)")
	rootCmd.PersistentFlags().StringVar(&serverAddr, "server", "http://127.0.0.1:8090", "Overseer admin API address")

	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("output", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(vmsCmd)
	rootCmd.AddCommand(vmCmd)
	rootCmd.AddCommand(hostsCmd)
	rootCmd.AddCommand(requestsCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(destroyCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".glassdomectl")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("GLASSDOMECTL")

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintln(os.Stderr, "using config file:", viper.ConfigFileUsed())
	}
	if viper.IsSet("server") {
		serverAddr = viper.GetString("server")
	}
}

func printSuccess(format string, a ...interface{}) {
	fmt.Fprintf(os.Stdout, color.GreenString("✓ ")+format+"\n", a...)
}

func printError(format string, a ...interface{}) {
	fmt.Fprintf(os.Stderr, color.RedString("✗ ")+format+"\n", a...)
}

func printInfo(format string, a ...interface{}) {
	fmt.Fprintf(os.Stdout, color.CyanString("ℹ ")+format+"\n", a...)
}
