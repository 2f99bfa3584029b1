package aggregate

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/TobiSchelling/NoiseStory/internal/complaint"
	"github.com/TobiSchelling/NoiseStory/internal/phase"
)

// DefaultEpoch is day zero of the regression trend term.
var DefaultEpoch = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

// ErrRankDeficient reports a design matrix whose columns are not linearly
// independent, so no unique least-squares fit exists.
var ErrRankDeficient = errors.New("design matrix is rank deficient")

// regressors is the number of columns in the design matrix.
const regressors = 5

// Coefficients of the daily-count model
// count = Intercept + Trend*day + Weekend*w + Lockdown*l + Reopening*r.
type Coefficients struct {
	Intercept float64
	Trend     float64
	Weekend   float64
	Lockdown  float64
	Reopening float64
}

// BoroughRegression is the fitted model for one borough. When Err is set the
// coefficients are zero and meaningless.
type BoroughRegression struct {
	Borough      string
	Coefficients Coefficients
	RSquared     float64
	Observations int
	Err          error
}

// Regress fits an ordinary least squares model of daily complaint counts
// per borough. Each observed (date, borough) pair is one observation. The
// phase flags come from each record's Phase.
func Regress(records []complaint.Complaint, epoch time.Time) []BoroughRegression {
	type obs struct {
		date  time.Time
		phase phase.Phase
		count int
	}
	byBorough := make(map[string]map[time.Time]*obs)
	for _, r := range records {
		days, ok := byBorough[r.Borough]
		if !ok {
			days = make(map[time.Time]*obs)
			byBorough[r.Borough] = days
		}
		o, ok := days[r.Date]
		if !ok {
			o = &obs{date: r.Date, phase: r.Phase}
			days[r.Date] = o
		}
		o.count++
	}

	var out []BoroughRegression
	for _, name := range boroughsOf(records) {
		days := byBorough[name]
		series := make([]obs, 0, len(days))
		for _, o := range days {
			series = append(series, *o)
		}
		sort.Slice(series, func(i, j int) bool { return series[i].date.Before(series[j].date) })

		x := make([][regressors]float64, len(series))
		y := make([]float64, len(series))
		for i, o := range series {
			x[i] = designRow(o.date, o.phase, epoch)
			y[i] = float64(o.count)
		}

		res := BoroughRegression{Borough: name, Observations: len(series)}
		coef, r2, err := fitOLS(x, y)
		if err != nil {
			res.Err = fmt.Errorf("regressing %s: %w", name, err)
		} else {
			res.Coefficients = coef
			res.RSquared = r2
		}
		out = append(out, res)
	}
	return out
}

func designRow(date time.Time, p phase.Phase, epoch time.Time) [regressors]float64 {
	var row [regressors]float64
	row[0] = 1
	row[1] = math.Round(date.Sub(epoch).Hours() / 24)
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		row[2] = 1
	}
	if p == phase.Lockdown {
		row[3] = 1
	}
	if p == phase.Reopening {
		row[4] = 1
	}
	return row
}

func fitOLS(rows [][regressors]float64, y []float64) (Coefficients, float64, error) {
	n := len(rows)
	if n < regressors {
		return Coefficients{}, 0, fmt.Errorf("%w: %d observations for %d coefficients", ErrRankDeficient, n, regressors)
	}

	for col := 1; col < regressors; col++ {
		if constantColumn(rows, col) {
			return Coefficients{}, 0, fmt.Errorf("%w: column %d is constant", ErrRankDeficient, col)
		}
	}

	data := make([]float64, 0, n*regressors)
	for _, r := range rows {
		data = append(data, r[:]...)
	}
	x := mat.NewDense(n, regressors, data)
	b := mat.NewVecDense(n, y)

	var beta mat.VecDense
	if err := beta.SolveVec(x, b); err != nil {
		return Coefficients{}, 0, fmt.Errorf("%w: %v", ErrRankDeficient, err)
	}

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	estimates := make([]float64, n)
	for i := range estimates {
		estimates[i] = fitted.AtVec(i)
	}
	r2 := stat.RSquaredFrom(estimates, y, nil)

	coef := Coefficients{
		Intercept: beta.AtVec(0),
		Trend:     beta.AtVec(1),
		Weekend:   beta.AtVec(2),
		Lockdown:  beta.AtVec(3),
		Reopening: beta.AtVec(4),
	}
	return coef, r2, nil
}

// constantColumn reports whether a column duplicates the intercept or is
// identically zero.
func constantColumn(rows [][regressors]float64, col int) bool {
	first := rows[0][col]
	for _, r := range rows[1:] {
		if r[col] != first {
			return false
		}
	}
	return true
}

// Drivers summarises the phase and weekend effects across boroughs.
type Drivers struct {
	Boroughs         int
	Lockdown         float64
	Reopening        float64
	Weekend          float64
	ReopeningStdDev  float64
	StrongestBorough string
	StrongestSurge   float64
}

// KeyDrivers averages the coefficients of the successful regressions.
// ReopeningStdDev is zero with fewer than two boroughs.
func KeyDrivers(regs []BoroughRegression) Drivers {
	var lock, reopen, weekend []float64
	var d Drivers
	for _, r := range regs {
		if r.Err != nil || r.Borough == complaint.Unknown {
			continue
		}
		lock = append(lock, r.Coefficients.Lockdown)
		reopen = append(reopen, r.Coefficients.Reopening)
		weekend = append(weekend, r.Coefficients.Weekend)
		if d.StrongestBorough == "" || r.Coefficients.Reopening > d.StrongestSurge {
			d.StrongestBorough = r.Borough
			d.StrongestSurge = r.Coefficients.Reopening
		}
	}
	d.Boroughs = len(lock)
	if d.Boroughs == 0 {
		return d
	}
	d.Lockdown = stat.Mean(lock, nil)
	d.Reopening = stat.Mean(reopen, nil)
	d.Weekend = stat.Mean(weekend, nil)
	if d.Boroughs > 1 {
		d.ReopeningStdDev = stat.StdDev(reopen, nil)
	}
	return d
}
