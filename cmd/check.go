package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/pvesely/mbox-absence/config"
	"github.com/pvesely/mbox-absence/llm"
)

// checkEmail is a known-positive sample sent to the deployment to
// verify credentials, connectivity and response parsing in one go.
var checkEmail = llm.Email{
	From:    "jan.novak@firma.cz",
	Date:    "Mon, 15 Jan 2024 10:30:00 +0100",
	Subject: "Re: OOO",
	Body: `Dobrý den,

budu na dovolené od 15.1. do 30.1.2024.
V případě naléhavosti mě kontaktujte na mobilu nebo se obraťte na kolegu Petra (petr@firma.cz).

S pozdravem,
Jan Novák`,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the classifier configuration with a single test email",
	RunE: func(cmd *cobra.Command, args []string) error {
		setupLogger("warn")

		classifier, err := config.LoadClassifier()
		if err != nil {
			return err
		}
		pterm.Info.Printf("Endpoint: %s\n", classifier.Endpoint)
		pterm.Info.Printf("Deployment: %s\n", classifier.Deployment)
		pterm.Info.Printf("API version: %s\n", classifier.APIVersion)
		pterm.Info.Printf("Pricing: $%.2f/1M input, $%.2f/1M output\n",
			classifier.PriceInput, classifier.PriceOutput)

		adj := llm.New(
			llm.NewAzureClient(classifier.Endpoint, classifier.APIKey, classifier.APIVersion),
			classifier.Deployment,
			llm.Pricing{InputPerMillion: classifier.PriceInput, OutputPerMillion: classifier.PriceOutput},
		)

		pterm.Info.Println("Sending test email...")
		verdict := adj.Classify(cmd.Context(), checkEmail)
		if verdict.Err != nil {
			return fmt.Errorf("classifier check failed after %d attempts: %w", verdict.Attempts, verdict.Err)
		}

		pterm.Success.Println("Classifier responded")
		pterm.Info.Printf("Decision: %v (confidence %.2f)\n", verdict.IsMatch, verdict.Confidence)
		if verdict.Reasoning != "" {
			pterm.Info.Printf("Reasoning: %s\n", verdict.Reasoning)
		}
		pterm.Info.Printf("Tokens: %d in / %d out, cost $%.6f\n",
			verdict.PromptTokens, verdict.CompletionTokens, verdict.CostUSD)

		if !verdict.IsMatch {
			pterm.Warning.Println("The test email should classify as an absence reply; check the deployment and prompts")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
