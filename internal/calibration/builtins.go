package calibration

// Built-in thermometer calibrations. Coefficients are Chebyshev fits against
// log10(R); each sensor carries its own fitted resistance domain in ohms.

// cernoxCX1050 is the R→T curve for a Cernox CX-1050-AA-1.4L sensor
// (serial X105321), 1.4 K to 325 K.
func cernoxCX1050() Function {
	return &piecewiseChebyshev{
		name:   "cernox-cx1050",
		unit:   "K",
		domain: Domain{Min: 54.31, Max: 9825},
		segments: []segment{
			{
				// 1.40 K to 14.3 K
				rMin: 689.3, rMax: 9825,
				coeffs: []float64{
					5.527867, -6.379248, 2.855709, -1.065175, 0.334348,
					-0.084377, 0.013947, 0.000599, -0.001649, 0.001212,
				},
				zl: 2.79894969622, zu: 4.13119755741,
			},
			{
				// 14.3 K to 80.3 K
				rMin: 189.3, rMax: 689.3,
				coeffs: []float64{
					43.034893, -38.016846, 8.162617, -0.935864,
					0.093585, -0.003306, -0.006104,
				},
				zl: 2.23461882459, zu: 2.88553993198,
			},
			{
				// 80.3 K to 325 K
				rMin: 54.31, rMax: 189.3,
				coeffs: []float64{
					177.551522, -126.721728, 22.066582, -3.115138,
					0.595049, -0.112115, 0.015706,
				},
				zl: 1.72880129581, zu: 2.3242938345,
			},
		},
	}
}

// dipstickRuO2 is the R→T curve for the dipstick cryostat thermometer,
// 4.2 K to 295 K. The fit yields log10(T).
func dipstickRuO2() Function {
	return &piecewiseChebyshev{
		name:   "dipstick-ruo2",
		unit:   "K",
		domain: Domain{Min: 45.775, Max: 9816},
		segments: []segment{
			{
				// 4.2 K to 18.1 K
				rMin: 1030.73, rMax: 9816,
				coeffs: []float64{
					1.0305706890196387, -0.44538638729688446, 0.038245646079858205,
					0.00040965728900122016, -0.0012118796335522266, 0.00016675566193886398,
					-0.0003134743277859895, -4.9862349494365405e-05, -0.0002538643045723284,
					2.930529810139165e-05, 0.00010177604830833634,
				},
				zl: 2.72290035, zu: 3.99196185, pow10: true,
			},
			{
				// 18.1 K to 107.7 K
				rMin: 143.125, rMax: 1030.73,
				coeffs: []float64{
					1.7681898764629274, -0.5246006794490299, -0.0009736793484812508,
					0.003478858170366785, 0.0008144241470007147, 0.00010086660798327552,
					-0.0002057511678956854, -1.0562017354248726e-05, 0.00021521449198016844,
					-0.0003566476960957493, -0.00031293753057890167,
				},
				zl: 1.86381739, zu: 3.02540734, pow10: true,
			},
			{
				// 107.7 K to 295.3 K
				rMin: 45.775, rMax: 143.125,
				coeffs: []float64{
					2.2479945607783676, -0.220244799396414, 0.0001736586172434195,
					-0.0014264062220913924, 0.00016439143464969143, -0.00015075504768659046,
					-7.754154576623546e-05, -0.00011707662585304951, -2.3972858842214167e-05,
					-0.00010280191330409421, -5.983916339295706e-06,
				},
				zl: 1.66062417, zu: 2.16173695, pow10: true,
			},
		},
	}
}
