package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// DeviceReport is one capture device with its raw capture modes.
type DeviceReport struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Path    string       `json:"path"`
	Formats []FormatLine `json:"formats"`
	Error   string       `json:"error,omitempty"`
}

// FormatLine is one pixel format with its frame sizes.
type FormatLine struct {
	FourCC       string   `json:"fourcc"`
	Description  string   `json:"description"`
	BitsPerPixel int      `json:"bpp"`
	Sizes        []string `json:"sizes"`
}

// CreateDevicesCmd creates the devices command.
func CreateDevicesCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List capture devices and their formats",
		Long: `Enumerates V4L2 capture devices and prints every pixel format and frame size they offer. ` +
			`Formats marked with a bit depth can be bound by the capture graph.`,
		Args: cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			reports, err := collectDevices()
			if err != nil {
				return err
			}
			return writeDevices(c.OutOrStdout(), reports, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
	return cmd
}

func writeDevices(w io.Writer, reports []DeviceReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}
	if len(reports) == 0 {
		fmt.Fprintln(w, "no capture devices found")
		return nil
	}
	for _, r := range reports {
		fmt.Fprintf(w, "%s  %s\n  id: %s\n", r.Path, r.Name, r.ID)
		if r.Error != "" {
			fmt.Fprintf(w, "  error: %s\n", r.Error)
			continue
		}
		for _, f := range r.Formats {
			depth := "not bindable"
			if f.BitsPerPixel > 0 {
				depth = fmt.Sprintf("%d bpp", f.BitsPerPixel)
			}
			fmt.Fprintf(w, "  %s (%s, %s)\n", f.FourCC, f.Description, depth)
			for _, s := range f.Sizes {
				fmt.Fprintf(w, "    %s\n", s)
			}
		}
	}
	return nil
}
