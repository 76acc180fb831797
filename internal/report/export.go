package report

import (
	"os"
	"strconv"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/terralab/geostat/internal/esda"
	"github.com/terralab/geostat/internal/regress"
	"github.com/terralab/geostat/internal/sample"
	"github.com/terralab/geostat/internal/tessellate"
)

// WriteObservationsCSV exports the sampled points.
func WriteObservationsCSV(obs []sample.Observation, path string) error {
	return writeCSV(obs, path)
}

// WriteZonesCSV exports the zonal statistics table.
func WriteZonesCSV(zones []tessellate.ZoneStat, path string) error {
	return writeCSV(zones, path)
}

// WriteLocalMoranCSV exports the per-zone local association statistics.
func WriteLocalMoranCSV(locals []esda.LocalMoran, path string) error {
	return writeCSV(locals, path)
}

func writeCSV(v any, path string) error {
	b, err := csvutil.Marshal(v)
	if err != nil {
		return eris.Wrap(err, "report: marshal csv")
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return eris.Wrap(err, "report: write csv")
	}
	return nil
}

// Workbook bundles the tabular results for a spreadsheet export.
type Workbook struct {
	Observations []sample.Observation
	Zones        []tessellate.ZoneStat
	Moran        *esda.MoranResult
	OLS          *regress.OLSResult
	SEM          *regress.SEMResult
}

// WriteXLSX exports the workbook with one sheet per table.
func WriteXLSX(wb Workbook, path string) error {
	f := xlsx.NewFile()

	if len(wb.Observations) > 0 {
		sheet, err := f.AddSheet("observations")
		if err != nil {
			return eris.Wrap(err, "report: add observations sheet")
		}
		header := sheet.AddRow()
		for _, h := range []string{"x", "y", "value"} {
			header.AddCell().SetString(h)
		}
		for _, o := range wb.Observations {
			row := sheet.AddRow()
			row.AddCell().SetFloat(o.X)
			row.AddCell().SetFloat(o.Y)
			row.AddCell().SetFloat(o.Value)
		}
	}

	if len(wb.Zones) > 0 {
		sheet, err := f.AddSheet("zones")
		if err != nil {
			return eris.Wrap(err, "report: add zones sheet")
		}
		header := sheet.AddRow()
		for _, h := range []string{"x", "y", "area", "count", "min", "max", "mean", "std"} {
			header.AddCell().SetString(h)
		}
		for _, z := range wb.Zones {
			row := sheet.AddRow()
			row.AddCell().SetFloat(z.X)
			row.AddCell().SetFloat(z.Y)
			row.AddCell().SetFloat(z.Area)
			row.AddCell().SetInt(z.Count)
			row.AddCell().SetFloat(z.Min)
			row.AddCell().SetFloat(z.Max)
			row.AddCell().SetFloat(z.Mean)
			row.AddCell().SetFloat(z.Std)
		}
	}

	if wb.Moran != nil || wb.OLS != nil || wb.SEM != nil {
		sheet, err := f.AddSheet("statistics")
		if err != nil {
			return eris.Wrap(err, "report: add statistics sheet")
		}
		add := func(name string, value float64) {
			row := sheet.AddRow()
			row.AddCell().SetString(name)
			row.AddCell().SetFloat(value)
		}
		if wb.Moran != nil {
			add("moran_i", wb.Moran.I)
			add("moran_expected", wb.Moran.Expected)
			add("moran_z", wb.Moran.Z)
			add("moran_p", wb.Moran.PValue)
		}
		if wb.OLS != nil {
			for j, c := range wb.OLS.Coefficients {
				add("ols_beta_"+strconv.Itoa(j), c)
			}
			add("ols_r2", wb.OLS.R2)
			add("ols_aic", wb.OLS.AIC)
		}
		if wb.SEM != nil {
			for j, c := range wb.SEM.Coefficients {
				add("sem_beta_"+strconv.Itoa(j), c)
			}
			add("sem_lambda", wb.SEM.Lambda)
			add("sem_aic", wb.SEM.AIC)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "report: save workbook")
	}
	return nil
}

// WriteSummary writes a short human-readable run summary.
func WriteSummary(wb Workbook, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "report: create summary")
	}
	defer f.Close() //nolint:errcheck

	p := message.NewPrinter(language.English)
	p.Fprintf(f, "observations: %d\n", len(wb.Observations))
	p.Fprintf(f, "zones: %d\n", len(wb.Zones))
	if wb.Moran != nil {
		p.Fprintf(f, "moran's I: %.4f (expected %.4f, z = %.2f, p = %.4f)\n",
			wb.Moran.I, wb.Moran.Expected, wb.Moran.Z, wb.Moran.PValue)
	}
	if wb.OLS != nil {
		p.Fprintf(f, "ols: R2 = %.4f, AIC = %.1f\n", wb.OLS.R2, wb.OLS.AIC)
	}
	if wb.SEM != nil {
		p.Fprintf(f, "spatial error: lambda = %.4f, AIC = %.1f\n", wb.SEM.Lambda, wb.SEM.AIC)
		if wb.OLS != nil && wb.SEM.AIC < wb.OLS.AIC {
			p.Fprintf(f, "the spatial error model is preferred by AIC\n")
		}
	}
	return nil
}
