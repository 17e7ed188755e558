package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dentascan/dentascan-go/internal/conf"
	"github.com/dentascan/dentascan-go/internal/datastore"
	"github.com/dentascan/dentascan-go/internal/detector"
)

// xrayCommand groups imaging subcommands.
func xrayCommand(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "xray",
		Short: "Ingest and review patient imaging",
	}
	cmd.AddCommand(
		xrayAddCommand(settings),
		xrayHistoryCommand(settings),
		xrayTestCommand(settings),
		xrayRenderCommand(settings),
	)
	return cmd
}

func xrayAddCommand(settings *conf.Settings) *cobra.Command {
	var patientID uint

	cmd := &cobra.Command{
		Use:   "add <image>",
		Short: "Ingest an image for a patient and run detection on it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closer, err := openSession(cmd, settings)
			if err != nil {
				return err
			}
			defer closer()

			recordID, err := session.Ingest(cmd.Context(), patientID, args[0])
			if err != nil {
				return err
			}

			record, err := session.GetRecord(recordID)
			if err != nil {
				return err
			}
			fmt.Printf("Created imaging record %d with %d detections\n", record.ID, len(record.Detections))
			return nil
		},
	}

	cmd.Flags().UintVar(&patientID, "patient", 0, "Id of the patient the image belongs to")
	_ = cmd.MarkFlagRequired("patient")

	return cmd
}

func xrayHistoryCommand(settings *conf.Settings) *cobra.Command {
	var patientID uint

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a patient's imaging history, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closer, err := openSession(cmd, settings)
			if err != nil {
				return err
			}
			defer closer()

			records, err := session.History(patientID)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No imaging records found for this patient.")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTORAGE PATH\tDETECTIONS")
			for i := range records {
				r := &records[i]
				fmt.Fprintf(w, "%d\t%s\t%d\n", r.ID, r.StoragePath, len(r.Detections))
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().UintVar(&patientID, "patient", 0, "Id of the patient")
	_ = cmd.MarkFlagRequired("patient")

	return cmd
}

func xrayTestCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "test <image>",
		Short: "Run detection on an image without saving anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closer, err := openSession(cmd, settings)
			if err != nil {
				return err
			}
			defer closer()

			detections, err := session.InspectImage(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			printDetections(detections)
			return nil
		},
	}
}

func xrayRenderCommand(settings *conf.Settings) *cobra.Command {
	var recordID uint

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the annotation plan for a stored imaging record as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closer, err := openSession(cmd, settings)
			if err != nil {
				return err
			}
			defer closer()

			plan, err := session.RenderRecord(recordID)
			if err != nil {
				return err
			}

			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			return encoder.Encode(plan)
		},
	}

	cmd.Flags().UintVar(&recordID, "record", 0, "Id of the imaging record")
	_ = cmd.MarkFlagRequired("record")

	return cmd
}

func printDetections(detections []datastore.Detection) {
	if len(detections) == 0 {
		fmt.Println("No findings at or above the confidence threshold.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tCONFIDENCE\tBOX")
	for i := range detections {
		d := &detections[i]
		fmt.Fprintf(w, "%s\t%.2f\t(%.0f,%.0f)-(%.0f,%.0f)\n",
			detector.ClassName(d.ClassID), d.Confidence, d.X1, d.Y1, d.X2, d.Y2)
	}
	w.Flush()
}
