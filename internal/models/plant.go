package models

// PlantType identifies one of the supported plant species.
type PlantType int

// Supported plant types.
const (
	PlantTomato PlantType = iota
	PlantLettuce
	PlantBasil
	PlantMint
	PlantPepper
	PlantRose
	PlantSunflower
	PlantMarigold
	PlantPetunia
	PlantDaisy
	PlantStrawberry
	PlantBlueberry
	PlantRaspberry
	PlantGrape
	PlantCactus
	PlantSucculent
	PlantFern
	PlantOrchid
	PlantBamboo
	PlantLavender

	PlantTypeCount = 20
)

// Valid reports whether the plant type is within the supported range.
func (p PlantType) Valid() bool {
	return p >= 0 && p < PlantTypeCount
}

var plantTypeNames = [PlantTypeCount]string{
	"tomato", "lettuce", "basil", "mint", "pepper",
	"rose", "sunflower", "marigold", "petunia", "daisy",
	"strawberry", "blueberry", "raspberry", "grape",
	"cactus", "succulent", "fern", "orchid", "bamboo", "lavender",
}

// String returns the lowercase plant name, or "unknown" for invalid types.
func (p PlantType) String() string {
	if !p.Valid() {
		return "unknown"
	}
	return plantTypeNames[p]
}

// ParsePlantType resolves a plant name to its PlantType. The boolean is
// false when the name is not a supported plant.
func ParsePlantType(name string) (PlantType, bool) {
	for i, n := range plantTypeNames {
		if n == name {
			return PlantType(i), true
		}
	}
	return 0, false
}

// GrowthStage identifies the growth phase of a plant.
type GrowthStage int

// Growth stages.
const (
	StageSeedling GrowthStage = iota
	StageVegetative
	StageFlowering
	StageFruiting
	StageMature

	GrowthStageCount = 5
)

// Valid reports whether the growth stage is within the supported range.
func (g GrowthStage) Valid() bool {
	return g >= 0 && g < GrowthStageCount
}

var growthStageNames = [GrowthStageCount]string{
	"seedling", "vegetative", "flowering", "fruiting", "mature",
}

// String returns the lowercase stage name, or "unknown" for invalid stages.
func (g GrowthStage) String() string {
	if !g.Valid() {
		return "unknown"
	}
	return growthStageNames[g]
}

// ParseGrowthStage resolves a stage name to its GrowthStage. The boolean is
// false when the name is not a supported stage.
func ParseGrowthStage(name string) (GrowthStage, bool) {
	for i, n := range growthStageNames {
		if n == name {
			return GrowthStage(i), true
		}
	}
	return 0, false
}

// PlantProfile describes the static characteristics of one plant type.
// Stage modifiers are indexed by GrowthStage.
type PlantProfile struct {
	Name               string                   `json:"name"`
	MoistureThreshold  float64                  `json:"moisture_threshold"`
	TemperatureOptimal float64                  `json:"temperature_optimal"`
	HumidityOptimal    float64                  `json:"humidity_optimal"`
	LightRequirement   float64                  `json:"light_requirement"`
	BaseWaterAmount    float64                  `json:"base_water_amount"`
	StageModifiers     [GrowthStageCount]float64 `json:"stage_modifiers"`
}
