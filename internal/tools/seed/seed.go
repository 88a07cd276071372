// Package seed populates a local development database with demo data by
// exercising the composed domain services.
package seed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/studycommons/studycommons/internal/server"
	accountsapp "github.com/studycommons/studycommons/internal/services/accounts/app"
	governanceapp "github.com/studycommons/studycommons/internal/services/governance/app"
	"github.com/studycommons/studycommons/internal/services/governance/proposal"
	libraryapp "github.com/studycommons/studycommons/internal/services/library/app"
)

const votingWindow = 72 * time.Hour

type accountFixture struct {
	DisplayName string
	Username    string
	Bio         string
}

type resourceFixture struct {
	Owner       string
	Title       string
	URL         string
	Description string
	Subject     string
	Level       string
	Tags        []string
}

var accountFixtures = []accountFixture{
	{DisplayName: "Ada", Username: "ada", Bio: "Chemistry teacher collecting open coursework."},
	{DisplayName: "Grace", Username: "grace", Bio: "Maths tutor."},
	{DisplayName: "Linus", Username: "linus", Bio: "Self-taught programmer."},
}

var resourceFixtures = []resourceFixture{
	{
		Owner:   "ada",
		Title:   "Stoichiometry Basics",
		URL:     "https://example.com/chemistry/stoichiometry",
		Subject: "chemistry",
		Level:   "intro",
		Tags:    []string{"moles", "reactions"},
	},
	{
		Owner:       "ada",
		Title:       "Balancing Redox Equations",
		URL:         "https://example.com/chemistry/redox",
		Description: "Worked examples for half-reaction balancing.",
		Subject:     "chemistry",
		Level:       "intermediate",
	},
	{
		Owner:   "grace",
		Title:   "Linear Algebra Notes",
		URL:     "https://example.com/maths/linear-algebra",
		Subject: "maths",
		Level:   "intermediate",
		Tags:    []string{"vectors", "matrices"},
	},
	{
		Owner:   "grace",
		Title:   "Calculus Practice Problems",
		URL:     "https://example.com/maths/calculus-practice",
		Subject: "maths",
		Level:   "intro",
	},
	{
		Owner:   "linus",
		Title:   "Operating Systems From Scratch",
		URL:     "https://example.com/cs/os-from-scratch",
		Subject: "computer-science",
		Level:   "advanced",
	},
	{
		Owner:   "linus",
		Title:   "Intro to Networking",
		URL:     "https://example.com/cs/networking",
		Subject: "computer-science",
		Level:   "intro",
	},
}

// Run writes the demo fixtures through the domain services. Progress is
// reported to out.
func Run(ctx context.Context, services server.Services, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	userIDs := map[string]string{}
	for _, fixture := range accountFixtures {
		account, err := services.Accounts.CreateAccount(ctx, accountsapp.CreateAccountInput{
			DisplayName: fixture.DisplayName,
			Bio:         fixture.Bio,
			Username:    fixture.Username,
		})
		if err != nil {
			return fmt.Errorf("create account %q: %w", fixture.Username, err)
		}
		userIDs[fixture.Username] = account.User.ID
		fmt.Fprintf(out, "account %s (%s)\n", fixture.Username, account.User.ID)
	}

	resourceIDs := make([]string, 0, len(resourceFixtures))
	for _, fixture := range resourceFixtures {
		created, err := services.Library.Submit(ctx, libraryapp.SubmitInput{
			OwnerUserID: userIDs[fixture.Owner],
			Title:       fixture.Title,
			URL:         fixture.URL,
			Description: fixture.Description,
			Subject:     fixture.Subject,
			Level:       fixture.Level,
			Tags:        fixture.Tags,
		})
		if err != nil {
			return fmt.Errorf("submit resource %q: %w", fixture.Title, err)
		}
		resourceIDs = append(resourceIDs, created.ID)
		fmt.Fprintf(out, "resource %q (%s)\n", created.Title, created.ID)
	}

	// Cross votes so every demo user clears the governance voting threshold.
	votes := []struct {
		Voter    string
		Resource int
		Value    int
	}{
		{Voter: "grace", Resource: 0, Value: 1},
		{Voter: "linus", Resource: 0, Value: 1},
		{Voter: "ada", Resource: 2, Value: 1},
		{Voter: "linus", Resource: 2, Value: -1},
		{Voter: "grace", Resource: 4, Value: 1},
	}
	for _, vote := range votes {
		if _, err := services.Library.CastVote(ctx, resourceIDs[vote.Resource], userIDs[vote.Voter], vote.Value); err != nil {
			return fmt.Errorf("cast vote by %q: %w", vote.Voter, err)
		}
	}
	fmt.Fprintf(out, "votes cast: %d\n", len(votes))

	author := userIDs["ada"]
	created, err := services.Governance.CreateProposal(ctx, governanceapp.CreateInput{
		AuthorUserID: author,
		Title:        "Adopt a shared tagging guide",
		Body:         "Agree on one tag vocabulary so resources stay findable.",
	})
	if err != nil {
		return fmt.Errorf("create proposal: %w", err)
	}
	opened, err := services.Governance.OpenVoting(ctx, created.ID, author, "", time.Now().Add(votingWindow))
	if err != nil {
		return fmt.Errorf("open voting: %w", err)
	}
	for _, ballot := range []struct {
		Voter  string
		Choice proposal.Choice
	}{
		{Voter: "ada", Choice: proposal.ChoiceYes},
		{Voter: "grace", Choice: proposal.ChoiceYes},
		{Voter: "linus", Choice: proposal.ChoiceAbstain},
	} {
		if _, err := services.Governance.CastBallot(ctx, opened.ID, userIDs[ballot.Voter], string(ballot.Choice)); err != nil {
			return fmt.Errorf("cast ballot by %q: %w", ballot.Voter, err)
		}
	}
	fmt.Fprintf(out, "proposal %q (%s) open until %s\n", opened.Title, opened.ID, opened.ClosesAt.Format(time.RFC3339))

	return nil
}
