package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"profilegate/internal/profile/handler"
)

type createOptions struct {
	lastName    string
	firstName   string
	dateOfBirth string
	salary      float64
	idImage     string
	salaryImage string
	baselineID  int64
}

func newCreateCmd(opts *globalOptions) *cobra.Command {
	co := &createOptions{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a profile with its ID document and salary slip",
		Long: `Create reads both document images from disk, base64-encodes them and
submits the claim. With --baseline the submission re-verifies an existing
profile instead of creating a new one.`,
		Example: `  profilectl create --last-name Doe --first-name John --dob 1990-01-01 \
    --salary 5000 --id-image id.png --salary-image slip.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := co.request()
			if err != nil {
				return err
			}
			resp, err := opts.client().createProfile(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: profile %d saved with salary %.2f\n", resp.Status, resp.ID, resp.Salary)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&co.lastName, "last-name", "", "claimed last name")
	f.StringVar(&co.firstName, "first-name", "", "claimed first name")
	f.StringVar(&co.dateOfBirth, "dob", "", "claimed date of birth (YYYY-MM-DD)")
	f.Float64Var(&co.salary, "salary", 0, "claimed net salary")
	f.StringVar(&co.idImage, "id-image", "", "path to the ID document image")
	f.StringVar(&co.salaryImage, "salary-image", "", "path to the salary slip image")
	f.Int64Var(&co.baselineID, "baseline", 0, "re-verify against this stored profile id")
	for _, name := range []string{"last-name", "first-name", "dob", "salary", "id-image", "salary-image"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func (co *createOptions) request() (*handler.CreateProfileRequest, error) {
	idImage, err := encodeFile(co.idImage)
	if err != nil {
		return nil, err
	}
	salaryImage, err := encodeFile(co.salaryImage)
	if err != nil {
		return nil, err
	}

	salary := co.salary
	req := &handler.CreateProfileRequest{
		ProfileData: &handler.ProfileData{
			LastName:    co.lastName,
			FirstName:   co.firstName,
			DateOfBirth: co.dateOfBirth,
			Salary:      &salary,
		},
		Image1: idImage,
		Image2: salaryImage,
	}
	if co.baselineID > 0 {
		id := co.baselineID
		req.BaselineID = &id
	}
	// Catch bad input locally with the server's own rules.
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

func encodeFile(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
