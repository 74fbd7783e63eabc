package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/warp/shift-engine/api"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Reset the database and load demo data",
	Long: `Wipes the database and loads a demo dataset: one owner with a unit
tree, two payment systems and schedules, two objects, three contracts,
one worked shift from yesterday, and one upcoming planned entry.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := api.Seed(cmd.Context(), store); err != nil {
			return err
		}
		fmt.Println(color.GreenString("✓ demo data loaded") +
			" (owner-demo, emp-001..emp-003, obj-cafe, obj-depot)")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
