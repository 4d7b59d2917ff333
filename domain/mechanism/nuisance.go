package mechanism

// NuisanceSource names one non-mechanistic variance source
type NuisanceSource string

const (
	SourceTechnical  NuisanceSource = "technical_artifact"
	SourceBiological NuisanceSource = "biological_heterogeneity"
	SourceBatch      NuisanceSource = "context_batch"
	SourcePipeline   NuisanceSource = "pipeline_segmentation"
	SourceDensity    NuisanceSource = "density_contact_pressure"
)

// NuisanceModel is the per-run configuration of non-mechanistic variance.
// Sources are assumed independent and combine additively. The model is owned
// by the run and updated only through explicit recalibration.
type NuisanceModel struct {
	// Variances holds per-source variance contributions in channel space.
	Variances map[NuisanceSource][]float64 `json:"variances"`

	// DensitySlope scales the density-dependent mean shift per channel.
	DensitySlope []float64 `json:"density_slope"`
}

// NewNuisanceModel creates an empty model for the given dimensionality
func NewNuisanceModel(dim int) *NuisanceModel {
	return &NuisanceModel{
		Variances:    make(map[NuisanceSource][]float64),
		DensitySlope: make([]float64, dim),
	}
}

// SetSource replaces one source's variance vector. Called only from
// recalibration paths.
func (nm *NuisanceModel) SetSource(src NuisanceSource, variances []float64) {
	v := make([]float64, len(variances))
	copy(v, variances)
	nm.Variances[src] = v
}

// CovarianceInflation returns the summed per-channel variance inflation
func (nm *NuisanceModel) CovarianceInflation(dim int) []float64 {
	total := make([]float64, dim)
	for _, v := range nm.Variances {
		for i := 0; i < dim && i < len(v); i++ {
			total[i] += v[i]
		}
	}
	return total
}

// MeanShift returns the density-dependent offset for the given density
func (nm *NuisanceModel) MeanShift(density float64, dim int) []float64 {
	shift := make([]float64, dim)
	for i := 0; i < dim && i < len(nm.DensitySlope); i++ {
		shift[i] = nm.DensitySlope[i] * density
	}
	return shift
}
