// Package aeat implementa el intercambio con el servicio web VERI*FACTU de la AEAT:
// construcción de RegFactuSistemaFacturacion, lectura de la respuesta y transporte SOAP.
package aeat

// Entornos de envío.
const (
	// EnvDev no envía nada: respuestas simuladas a partir de la petición.
	EnvDev = "dev"
	// EnvTest entorno de pruebas externas de la AEAT.
	EnvTest = "test"
	// EnvProd entorno de producción.
	EnvProd = "prod"

	urlTest = "https://prewww1.aeat.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"
	urlProd = "https://www1.agenciatributaria.gob.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"
)

// Namespaces del servicio (SuministroLR.xsd / SuministroInformacion.xsd).
const (
	NsSoap = "http://schemas.xmlsoap.org/soap/envelope/"
	NsSum  = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroLR.xsd"
	NsSum1 = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroInformacion.xsd"
	NsResp = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/RespuestaSuministro.xsd"

	// IDVersion versión del formato de los registros.
	IDVersion = "1.0"
)

// SystemInfo datos del sistema informático de facturación (SistemaInformatico).
type SystemInfo struct {
	NIF                string // NIF del productor del software
	Name               string // NombreRazon del productor
	SystemName         string // NombreSistemaInformatico
	SystemID           string // IdSistemaInformatico (2 caracteres)
	Version            string
	InstallationNumber string
}

// URLFor devuelve el endpoint del entorno; vacío en dev o si el entorno es desconocido.
func URLFor(env string) string {
	switch env {
	case EnvProd:
		return urlProd
	case EnvTest:
		return urlTest
	default:
		return ""
	}
}
