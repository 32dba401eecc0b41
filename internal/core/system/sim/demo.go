package sim

import (
	"fmt"
	"math/rand/v2"

	"github.com/zeusync/zeusave/internal/core/models"
)

// Types used by demo worlds.
const (
	TypeDoor       models.TypeRef = "Door"
	TypeChest      models.TypeRef = "Chest"
	TypeEnemy      models.TypeRef = "Enemy"
	TypeProjectile models.TypeRef = "Projectile"
	TypeHealth     models.TypeRef = "HealthComponent"
	TypeMesh       models.TypeRef = "MeshComponent"
	TypeQuests     models.TypeRef = "QuestSubsystem"
	TypeWeather    models.TypeRef = "WeatherSubsystem"
)

// RegisterDemoTypes adds the demo types to reg. Already registered types are left alone.
func RegisterDemoTypes(reg *models.TypeRegistry) {
	for _, t := range []struct{ name, parent models.TypeRef }{
		{TypeDoor, models.TypeActor},
		{TypeChest, models.TypeActor},
		{TypeEnemy, models.TypeActor},
		{TypeProjectile, models.TypeActor},
		{TypeHealth, models.TypeComponent},
		{TypeMesh, models.TypePrimitiveComponent},
		{TypeQuests, models.TypeSubsystem},
		{TypeWeather, models.TypeSubsystem},
	} {
		if !reg.Exists(t.name) {
			_ = reg.Register(t.name, t.parent)
		}
	}
}

// NewDemoWorld builds a deterministic world with the given number of actors in the persistent
// level and one loaded sublevel.
func NewDemoWorld(mapName string, reg *models.TypeRegistry, actors int, seed uint64) *World {
	RegisterDemoTypes(reg)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	w := NewWorld(mapName, reg)
	w.RegisterTemplate(TypeEnemy, func(a *Actor) {
		a.AddComponent("Health", TypeHealth).SetInt("hp", 100)
		mesh := a.AddSceneComponent("Mesh", TypeMesh, true)
		mesh.AddTag("SaveTransform")
	})
	w.RegisterTemplate(TypeChest, func(a *Actor) {
		a.AddComponent("Health", TypeHealth).SetInt("hp", 10)
	})

	w.Game().SetInt("difficulty", 2)
	w.AddGameInstanceSubsystem("Quests", TypeQuests).SetText("active", "find-the-key")
	w.AddWorldSubsystem("Weather", TypeWeather).SetText("sky", "clear")

	script := w.SetLevelScript(w.Persistent())
	script.SetInt("stage", 1)

	kinds := []models.TypeRef{TypeDoor, TypeChest, TypeEnemy, TypeProjectile}
	var previous *Actor
	for i := range actors {
		typ := kinds[rng.IntN(len(kinds))]
		loc := models.Vector{X: rng.Float64() * 1000, Y: rng.Float64() * 1000}
		a := w.Place(w.Persistent(), typ, fmt.Sprintf("%s_%03d", typ, i), models.At(loc))
		a.SetInt("seed", rng.Int64N(1<<31))
		a.SetText("label", fmt.Sprintf("actor-%d", i))
		if previous != nil {
			a.SetRef("previous", previous)
		}
		if typ == TypeProjectile {
			a.RootComponent().SetLinearVelocity(models.Vector{X: 10, Y: float64(i)})
		}
		previous = a
	}

	sub := w.AddStreamingLevel("Dungeon", true)
	for i := range max(1, actors/10) {
		w.Place(sub.Level(), TypeEnemy, fmt.Sprintf("Guard_%02d", i), models.At(models.Vector{Z: float64(i)}))
	}
	return w
}

// DemoBuilder builds demo worlds for Maps.
func DemoBuilder(reg *models.TypeRegistry, actors int, seed uint64) Builder {
	return func(mapName string) *World {
		return NewDemoWorld(mapName, reg, actors, seed)
	}
}
