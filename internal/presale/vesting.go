package presale

import "time"

// Releases are the amounts unlocked at each of the three release times.
type Releases struct {
	First  uint64 `json:"first"`
	Second uint64 `json:"second"`
	Third  uint64 `json:"third"`
}

// Total returns the sum of the three releases.
func (r Releases) Total() uint64 {
	// each release is a floored share of one uint64, so the sum fits
	return r.First + r.Second + r.Third
}

// Claimable splits a participant's purchase into its three releases. Up to
// two units of rounding dust are never released.
func Claimable(p Participant, s Sale) Releases {
	if !s.VestingEnabled {
		return Releases{First: p.Purchased}
	}
	return Releases{
		First:  percentOf(p.Purchased, FirstReleasePercent),
		Second: percentOf(p.Purchased, SecondReleasePercent),
		Third:  percentOf(p.Purchased, ThirdReleasePercent),
	}
}

// ClaimPlan is a validated claim: the total to transfer and the releases it
// consumes.
type ClaimPlan struct {
	Total  uint64 `json:"total"`
	First  bool   `json:"first"`
	Second bool   `json:"second"`
	Third  bool   `json:"third"`
}

// PlanClaim collects every release that is due and not yet processed.
func PlanClaim(p Participant, s Sale, now time.Time) (ClaimPlan, error) {
	if s.Status != StatusCompleted {
		return ClaimPlan{}, ErrPresaleNotCompleted
	}

	r := Claimable(p, s)
	var plan ClaimPlan
	if !now.Before(s.FirstRelease) && !p.FirstClaimed {
		plan.Total += r.First
		plan.First = true
	}
	if s.VestingEnabled && !now.Before(s.SecondRelease) && !p.SecondClaimed {
		plan.Total += r.Second
		plan.Second = true
	}
	if s.VestingEnabled && !now.Before(s.ThirdRelease) && !p.ThirdClaimed {
		plan.Total += r.Third
		plan.Third = true
	}
	if plan.Total == 0 {
		return ClaimPlan{}, ErrNothingToClaim
	}
	return plan, nil
}

// ApplyClaim marks the consumed releases and adds the total to Claimed.
func (p *Participant) ApplyClaim(plan ClaimPlan) error {
	claimed, err := checkedAdd(p.Claimed, plan.Total)
	if err != nil {
		return err
	}
	if claimed > p.Purchased {
		return ErrArithmeticOverflow
	}
	p.Claimed = claimed
	p.FirstClaimed = p.FirstClaimed || plan.First
	p.SecondClaimed = p.SecondClaimed || plan.Second
	p.ThirdClaimed = p.ThirdClaimed || plan.Third
	return nil
}

// Release is one scheduled unlock that has not been processed.
type Release struct {
	Index  int       `json:"index"`
	At     time.Time `json:"at"`
	Amount uint64    `json:"amount"`
}

// UpcomingReleases lists the unprocessed releases that are not yet due.
func UpcomingReleases(p Participant, s Sale, now time.Time) []Release {
	r := Claimable(p, s)
	candidates := []struct {
		at     time.Time
		amount uint64
		done   bool
	}{
		{s.FirstRelease, r.First, p.FirstClaimed},
		{s.SecondRelease, r.Second, p.SecondClaimed},
		{s.ThirdRelease, r.Third, p.ThirdClaimed},
	}

	var out []Release
	for i, c := range candidates {
		if c.done || c.amount == 0 || !now.Before(c.at) {
			continue
		}
		out = append(out, Release{Index: i + 1, At: c.at, Amount: c.amount})
	}
	return out
}
