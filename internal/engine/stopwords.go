package engine

import "strings"

// stopwordSets maps a language tag to its stopword set. Languages absent
// from this table are matched without stopword removal.
var stopwordSets = map[string]map[string]struct{}{
	"portuguese": makeSet(`
		de a o que e do da em um para é com não uma os no se na por mais as
		dos como mas foi ao ele das tem à seu sua ou ser quando muito há nos
		já está eu também só pelo pela até isso ela entre era depois sem
		mesmo aos ter seus quem nas me esse eles estão você tinha foram essa
		num nem suas meu às minha têm numa pelos elas havia seja qual será
		nós tenho lhe deles essas esses pelas este fosse dele tu te vocês
		vos lhes meus minhas teu tua teus tuas nosso nossa nossos nossas
		dela delas esta estes estas aquele aquela aqueles aquelas isto
		aquilo estou estamos estive esteve estivemos estiveram estava
		estávamos estavam seria seríamos seriam sou somos são era éramos
		eram fui foi fomos ser`),
	"english": makeSet(`
		i me my myself we our ours ourselves you your yours yourself
		yourselves he him his himself she her hers herself it its itself
		they them their theirs themselves what which who whom this that
		these those am is are was were be been being have has had having do
		does did doing a an the and but if or because as until while of at
		by for with about against between into through during before after
		above below to from up down in out on off over under again further
		then once here there when where why how all any both each few more
		most other some such no nor not only own same so than too very s t
		can will just don should now`),
}

func makeSet(words string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(words) {
		set[w] = struct{}{}
	}
	return set
}
