// Package verifactu contiene catálogos y validaciones alineados a las
// especificaciones técnicas del sistema VERI*FACTU (AEAT, Orden HAC/1177/2024).
package verifactu

// =============================================================================
// L2 - Tipo de factura (TipoFactura)
// =============================================================================

const (
	InvoiceTypeF1 = "F1" // Factura (art. 6, 7.2 y 7.3 del RD 1619/2012)
	InvoiceTypeF2 = "F2" // Factura simplificada y sin identificación del destinatario
	InvoiceTypeF3 = "F3" // Factura emitida en sustitución de simplificadas
	InvoiceTypeR1 = "R1" // Rectificativa (art. 80.1, 80.2 y error fundado en derecho)
	InvoiceTypeR2 = "R2" // Rectificativa (art. 80.3)
	InvoiceTypeR3 = "R3" // Rectificativa (art. 80.4)
	InvoiceTypeR4 = "R4" // Rectificativa (resto)
	InvoiceTypeR5 = "R5" // Rectificativa en facturas simplificadas
)

// ValidInvoiceTypes tipos de factura admitidos en un registro de alta.
var ValidInvoiceTypes = map[string]bool{
	InvoiceTypeF1: true, InvoiceTypeF2: true, InvoiceTypeF3: true,
	InvoiceTypeR1: true, InvoiceTypeR2: true, InvoiceTypeR3: true,
	InvoiceTypeR4: true, InvoiceTypeR5: true,
}

// =============================================================================
// L1 - Impuesto
// =============================================================================

const (
	TaxIVA   = "01" // Impuesto sobre el Valor Añadido
	TaxIPSI  = "02" // Impuesto sobre la Producción, los Servicios y la Importación (Ceuta y Melilla)
	TaxIGIC  = "03" // Impuesto General Indirecto Canario
	TaxOtros = "05" // Otros
)

// ValidTaxes impuestos admitidos en el desglose.
var ValidTaxes = map[string]bool{TaxIVA: true, TaxIPSI: true, TaxIGIC: true, TaxOtros: true}

// =============================================================================
// L9 - Calificación de la operación / L10 - Operación exenta
// =============================================================================

const (
	QualificationS1 = "S1" // Sujeta y no exenta, sin inversión del sujeto pasivo
	QualificationS2 = "S2" // Sujeta y no exenta, con inversión del sujeto pasivo
	QualificationN1 = "N1" // No sujeta (art. 7, 14 y otros)
	QualificationN2 = "N2" // No sujeta por reglas de localización
)

// ValidQualifications calificaciones admitidas.
var ValidQualifications = map[string]bool{
	QualificationS1: true, QualificationS2: true, QualificationN1: true, QualificationN2: true,
}

// ValidExemptions causas de exención E1..E8.
var ValidExemptions = map[string]bool{
	"E1": true, "E2": true, "E3": true, "E4": true, "E5": true, "E6": true, "E7": true, "E8": true,
}

// =============================================================================
// L7 - Tipo de identificación en el país de residencia
// =============================================================================

const (
	IDTypeNIFIVA      = "02" // NIF-IVA
	IDTypePassport    = "03" // Pasaporte
	IDTypeOfficial    = "04" // Documento oficial de identificación expedido por el país
	IDTypeResidence   = "05" // Certificado de residencia
	IDTypeOther       = "06" // Otro documento probatorio
	IDTypeNotCensused = "07" // No censado
)

// =============================================================================
// Huella y estados de respuesta
// =============================================================================

const (
	HashTypeSHA256 = "01" // TipoHuella: SHA-256

	SubmissionCorrect          = "Correcto"
	SubmissionPartiallyCorrect = "ParcialmenteCorrecto"
	SubmissionIncorrect        = "Incorrecto"

	OperationAlta      = "Alta"
	OperationAnulacion = "Anulacion"

	// DefaultWaitSeconds tiempo de espera inicial entre envíos (TiempoEsperaEnvio).
	DefaultWaitSeconds = 60
	// MaxBatchSize número máximo de registros por remisión.
	MaxBatchSize = 1000
)
