package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/yyyoichi/warptps"
	"github.com/yyyoichi/warptps/landmarks"
)

func (c *CLI) landmarksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "landmarks",
		Aliases: []string{"lm"},
		Short:   "Manage stored landmark sets",
	}
	cmd.AddCommand(c.landmarksImportCommand())
	cmd.AddCommand(c.landmarksExportCommand())
	cmd.AddCommand(c.landmarksListCommand())
	cmd.AddCommand(c.landmarksShowCommand())
	cmd.AddCommand(c.landmarksDeleteCommand())
	cmd.AddCommand(c.landmarksCornersCommand())
	return cmd
}

func (c *CLI) landmarksImportCommand() *cobra.Command {
	var withKernel bool
	cmd := &cobra.Command{
		Use:   "import <name> <file>",
		Short: "Store landmarks from a CSV or CBOR file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ls, err := readLandmarkFile(args[1])
			if err != nil {
				return err
			}
			set := &landmarks.Set{Name: args[0], Landmarks: ls}
			if withKernel {
				exp, k := c.config.Kernel.Exponent, c.config.Kernel.Scale
				set.KernelExponent, set.KernelScale = &exp, &k
			}
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Save(cmd.Context(), set); err != nil {
				return err
			}
			c.print().success("Stored %d landmarks as %s", len(ls), args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&withKernel, "with-kernel", false, "store the configured kernel with the set")
	return cmd
}

func (c *CLI) landmarksExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "export <name> <file>",
		Short: "Write a stored set to a CSV or CBOR file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			set, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := writeLandmarkFile(args[1], set.Landmarks); err != nil {
				return err
			}
			c.print().success("Exported %d landmarks", len(set.Landmarks))
			c.print().file(args[1])
			return nil
		},
	}
}

func (c *CLI) landmarksListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			sums, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			p := c.print()
			if len(sums) == 0 {
				fmt.Fprintln(p.w, styleDim.Render("no landmark sets"))
				return nil
			}
			for _, s := range sums {
				p.keyValue(s.Name, fmt.Sprintf("%s landmarks  %s",
					styleNumber.Render(strconv.Itoa(s.Count)),
					styleDim.Render(s.UpdatedAt.Format(time.DateTime))))
			}
			return nil
		},
	}
}

func (c *CLI) landmarksShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print a stored set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			set, err := store.Load(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p := c.print()
			p.title(set.Name)
			if set.KernelExponent != nil {
				p.keyValue("r_exp", strconv.FormatFloat(*set.KernelExponent, 'g', -1, 64))
			}
			if set.KernelScale != nil {
				p.keyValue("k", strconv.FormatFloat(*set.KernelScale, 'g', -1, 64))
			}
			p.keyValue("updated", set.UpdatedAt.Format(time.DateTime))
			p.landmarkTable(set.Landmarks)

			t, err := set.Transform(c.config.Options()...)
			if err != nil {
				return err
			}
			if err := t.Solve(); err != nil {
				p.failure("%v", err)
			}
			return nil
		},
	}
}

func (c *CLI) landmarksDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := c.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			if err := store.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.print().success("Deleted %s", args[0])
			return nil
		},
	}
}

// landmarksCornersCommand writes the four corner landmarks mapping one
// image size onto another, a starting point for hand-placed landmarks.
func (c *CLI) landmarksCornersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "corners <srcW> <srcH> <dstW> <dstH> <file>",
		Short: "Write corner landmarks that rescale one image size to another",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			var size [4]int
			for i := range size {
				n, err := strconv.Atoi(args[i])
				if err != nil || n < 0 {
					return fmt.Errorf("invalid size %q", args[i])
				}
				size[i] = n
			}
			ls := warptps.CornerLandmarks(size[0], size[1], size[2], size[3])
			if err := writeLandmarkFile(args[4], ls); err != nil {
				return err
			}
			c.print().landmarkTable(ls)
			c.print().file(args[4])
			return nil
		},
	}
}
