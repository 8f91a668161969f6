package dl1

// Row mirrors for the HDF5 compound tables. Field names become the HDF5
// member names, so they follow the on-disk column naming.

const STRLEN = 48

type MetadataHDF5 struct {
	key   [STRLEN]byte
	value [STRLEN]byte
}

type TriggerHDF5 struct {
	obs_id   int32
	event_id int64
	time     float64
}

type TelTriggerHDF5 struct {
	obs_id                int32
	event_id              int64
	tel_id                int16
	telescopetrigger_time float64
}

type ArrayPointingHDF5 struct {
	time           float64
	array_azimuth  float64
	array_altitude float64
	array_ra       float64
	array_dec      float64
}

type TelPointingHDF5 struct {
	telescopetrigger_time float64
	azimuth               float64
	altitude              float64
}

type ShowerHDF5 struct {
	obs_id                 int32
	event_id               int64
	true_energy            float64
	true_alt               float64
	true_az                float64
	true_core_x            float64
	true_core_y            float64
	true_h_first_int       float64
	true_x_max             float64
	true_shower_primary_id int64
}

type RunConfigHDF5 struct {
	obs_id           int32
	corsika_version  int32
	simtel_version   int32
	energy_range_min float64
	energy_range_max float64
	spectral_index   float64
	num_showers      int64
	shower_reuse     int32
	max_alt          float64
	min_alt          float64
	max_az           float64
	min_az           float64
	prod_site_alt    float64
	atmosphere       int32
}

type ParametersHDF5 struct {
	obs_id                        int32
	event_id                      int64
	tel_id                        int16
	hillas_intensity              float64
	hillas_x                      float64
	hillas_y                      float64
	hillas_r                      float64
	hillas_phi                    float64
	hillas_length                 float64
	hillas_width                  float64
	hillas_psi                    float64
	hillas_skewness               float64
	hillas_kurtosis               float64
	timing_slope                  float64
	timing_intercept              float64
	timing_deviation              float64
	leakage_pixels_width_1        float64
	leakage_pixels_width_2        float64
	leakage_intensity_width_1     float64
	leakage_intensity_width_2     float64
	concentration_cog             float64
	concentration_core            float64
	concentration_pixel           float64
	morphology_num_pixels         int32
	morphology_num_islands        int32
	morphology_num_small_islands  int32
	morphology_num_medium_islands int32
	morphology_num_large_islands  int32
	intensity_max                 float64
	intensity_min                 float64
	intensity_mean                float64
	intensity_std                 float64
	intensity_skewness            float64
	intensity_kurtosis            float64
	peak_time_max                 float64
	peak_time_min                 float64
	peak_time_mean                float64
	peak_time_std                 float64
	peak_time_skewness            float64
	peak_time_kurtosis            float64
}

type LayoutHDF5 struct {
	tel_id   int16
	name     [STRLEN]byte
	tel_type [STRLEN]byte
	camera   [STRLEN]byte
	pos_x    float64
	pos_y    float64
	pos_z    float64
	n_pixels int32
}

func convertToHdf5String(s string) [STRLEN]byte {
	var byteArray [STRLEN]byte
	copy(byteArray[:], s)
	return byteArray
}

func hdf5StringToGo(b [STRLEN]byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b[:])
}
