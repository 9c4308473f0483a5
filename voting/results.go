// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package voting

import (
	"context"

	"github.com/danielhkuo/deliberation/models"
)

// Results loads every record of the session and aggregates it for the
// facilitator dashboard.
func (e *Engine) Results(ctx context.Context, sessionID string) (models.SessionResults, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return models.SessionResults{}, err
	}
	roles, err := e.store.ListRoles(ctx, sessionID)
	if err != nil {
		return models.SessionResults{}, err
	}
	candidates, err := e.store.ListCandidates(ctx, sessionID)
	if err != nil {
		return models.SessionResults{}, err
	}
	votes, err := e.store.ListVotes(ctx, sessionID)
	if err != nil {
		return models.SessionResults{}, err
	}
	ballots, err := e.store.ListBallots(ctx, sessionID)
	if err != nil {
		return models.SessionResults{}, err
	}
	ids := make([]string, len(ballots))
	for i, b := range ballots {
		ids[i] = b.ID
	}
	selections, err := e.store.ListSelections(ctx, ids...)
	if err != nil {
		return models.SessionResults{}, err
	}

	res := Tally(roles, candidates, votes, ballots, selections)
	res.SessionID = sess.ID
	res.Status = sess.Status
	return res, nil
}

// Tally aggregates raw records. Percentages are shares of the candidate's
// votes and stay 0 when it has none. Candidates keep the order they are given in;
// submission counts follow role order.
func Tally(roles []models.Role, candidates []models.Candidate, votes []models.Phase1Vote,
	ballots []models.Phase2Ballot, selections []models.Phase2Selection) models.SessionResults {

	roleNames := make(map[string]string, len(roles))
	for _, r := range roles {
		roleNames[r.ID] = r.Name
	}

	type counts struct{ strongYes, yes, no int }
	voteCounts := make(map[string]*counts)
	for _, v := range votes {
		c, ok := voteCounts[v.CandidateID]
		if !ok {
			c = &counts{}
			voteCounts[v.CandidateID] = c
		}
		switch v.Value {
		case models.VoteStrongYes:
			c.strongYes++
		case models.VoteYes:
			c.yes++
		case models.VoteNo:
			c.no++
		}
	}

	inclusions := make(map[string]int)
	for _, s := range selections {
		inclusions[s.CandidateID]++
	}

	res := models.SessionResults{
		Phase1:      make([]models.Phase1Tally, 0, len(candidates)),
		Phase2:      make([]models.Phase2Tally, 0, len(candidates)),
		Submissions: make([]models.SubmissionCount, 0, len(roles)),
	}

	for _, cand := range candidates {
		c := voteCounts[cand.ID]
		if c == nil {
			c = &counts{}
		}
		tally := models.Phase1Tally{
			CandidateID:      cand.ID,
			CandidateName:    cand.Name,
			RoleID:           cand.RoleID,
			RoleName:         roleNames[cand.RoleID],
			StrongYes:        c.strongYes,
			Yes:              c.yes,
			No:               c.no,
			AdvancedToPhase2: cand.AdvancedToPhase2,
		}
		if total := c.strongYes + c.yes + c.no; total > 0 {
			pct := func(n int) float64 { return float64(n) / float64(total) * 100 }
			tally.PercentYes = pct(c.strongYes + c.yes)
			tally.PercentStrongYes = pct(c.strongYes)
			tally.PercentPlainYes = pct(c.yes)
			tally.PercentNo = pct(c.no)
		}
		res.Phase1 = append(res.Phase1, tally)

		res.Phase2 = append(res.Phase2, models.Phase2Tally{
			CandidateID:    cand.ID,
			CandidateName:  cand.Name,
			RoleID:         cand.RoleID,
			RoleName:       roleNames[cand.RoleID],
			InclusionVotes: inclusions[cand.ID],
		})
	}

	for _, r := range roles {
		sc := models.SubmissionCount{RoleID: r.ID, RoleName: r.Name}
		for _, b := range ballots {
			if b.RoleID != r.ID {
				continue
			}
			sc.TotalCount++
			if b.Submitted {
				sc.SubmittedCount++
			}
		}
		res.Submissions = append(res.Submissions, sc)
	}

	return res
}
