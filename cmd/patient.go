package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dentascan/dentascan-go/internal/conf"
	"github.com/dentascan/dentascan-go/internal/datastore"
)

// patientCommand groups patient management subcommands.
func patientCommand(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patient",
		Short: "Manage patients owned by your account",
	}
	cmd.AddCommand(
		patientAddCommand(settings),
		patientListCommand(settings),
		patientSearchCommand(settings),
		patientRemoveCommand(settings),
	)
	return cmd
}

func patientAddCommand(settings *conf.Settings) *cobra.Command {
	var name, dob, email string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new patient",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closer, err := openSession(cmd, settings)
			if err != nil {
				return err
			}
			defer closer()

			patient, err := session.CreatePatient(name, dob, email)
			if err != nil {
				return err
			}

			fmt.Printf("Created patient %q with id %d\n", patient.Name, patient.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Patient name")
	cmd.Flags().StringVar(&dob, "dob", "", "Date of birth, dd-MM-yyyy")
	cmd.Flags().StringVar(&email, "email", "", "Contact email")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func patientListCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all patients owned by your account",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closer, err := openSession(cmd, settings)
			if err != nil {
				return err
			}
			defer closer()

			patients, err := session.ListPatients()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tDATE OF BIRTH\tEMAIL\tRECORDS")
			for i := range patients {
				p := &patients[i]
				count, err := session.RecordCount(p.ID)
				if err != nil {
					return err
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\n", p.ID, p.Name, orNoData(p.DateOfBirth), orNoData(p.Email), count)
			}
			w.Flush()
			return nil
		},
	}
}

func patientSearchCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "search <substring>",
		Short: "Look up patients by a case-insensitive name substring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closer, err := openSession(cmd, settings)
			if err != nil {
				return err
			}
			defer closer()

			patients, err := session.SearchPatients(args[0])
			if err != nil {
				return err
			}
			if len(patients) == 0 {
				fmt.Println("No patients found.")
				return nil
			}

			printPatients(patients)
			return nil
		},
	}
}

func patientRemoveCommand(settings *conf.Settings) *cobra.Command {
	var patientID uint

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a patient and all of their imaging records",
		RunE: func(cmd *cobra.Command, args []string) error {
			session, closer, err := openSession(cmd, settings)
			if err != nil {
				return err
			}
			defer closer()

			if err := session.DeletePatient(patientID); err != nil {
				return err
			}

			fmt.Printf("Removed patient %d and all associated imaging records\n", patientID)
			return nil
		},
	}

	cmd.Flags().UintVar(&patientID, "id", 0, "Id of the patient to remove")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func printPatients(patients []datastore.Patient) {
	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tDATE OF BIRTH\tEMAIL")
	for i := range patients {
		p := &patients[i]
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Name, orNoData(p.DateOfBirth), orNoData(p.Email))
	}
	w.Flush()
}

func orNoData(s string) string {
	if s == "" {
		return "no data"
	}
	return s
}
