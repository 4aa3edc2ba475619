package units

// Scale factors from SI cell quantities to the reporting units.
const (
	// VehPerKmPerVehPerM converts density from veh/m to veh/km.
	VehPerKmPerVehPerM = 1000.0
	// VehPerHourPerVehPerS converts flow from veh/s to veh/h.
	VehPerHourPerVehPerS = 3600.0
	// KmhPerMps converts speed from m/s to km/h.
	KmhPerMps = 3.6
)

// DensityPerKm converts a density in vehicles per metre to vehicles per kilometre.
func DensityPerKm(vehPerM float64) float64 {
	return vehPerM * VehPerKmPerVehPerM
}

// FlowPerHour converts a flow in vehicles per second to vehicles per hour.
func FlowPerHour(vehPerS float64) float64 {
	return vehPerS * VehPerHourPerVehPerS
}

// SpeedKmh converts a speed in m/s to km/h.
func SpeedKmh(mps float64) float64 {
	return mps * KmhPerMps
}

// DensityFromFlowSpeed derives density (veh/km) from a flow in veh/h and a
// harmonic mean speed in m/s, using q = k·v. Non-positive speeds yield 0.
func DensityFromFlowSpeed(flowPerHour, speedMPS float64) float64 {
	if speedMPS <= 0 {
		return 0
	}
	return flowPerHour / SpeedKmh(speedMPS)
}
